package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/jzolee/halink2mqtt/internal/config"
	"github.com/jzolee/halink2mqtt/internal/core/domain"
	"github.com/jzolee/halink2mqtt/internal/core/events"
	"github.com/jzolee/halink2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the device's entities to Home Assistant. HaLink
// devices re-send their CONFIG on every connect, so discovery is re-published
// on each accepted config, not just once at boot.
type HADiscoveryActor struct {
	config           *config.Config
	behavior         actor.Behavior
	stash            *actorutil.Stash
	linkActor        *actor.PID
	mqttActor        *actor.PID
	eventStream      *eventstream.EventStream
	eventStreamSub   *eventstream.Subscription
	linkActorHealthy bool
	mqttActorHealthy bool
	healthyRecv      int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, linkActor *actor.PID, mqttActor *actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		linkActor:   linkActor,
		mqttActor:   mqttActor,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Link and MQTT actor healthy
		state.healthyRecv = 0
		state.linkActorHealthy = false
		state.mqttActorHealthy = false
		// Link Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.linkActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_LINK,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_LINK:
				state.linkActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.linkActorHealthy && state.mqttActorHealthy {
				// catch configs that arrived before this actor booted
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.linkActor, domain.GetDeviceConfigRequest{}, 2*time.Second), func(err error) any {
					return domain.GetDeviceConfigResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingConfigReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Link Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingConfigReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceConfigResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@config: GetDeviceConfigResponse", zap.Bool("hasConfig", msg.Config != nil))

		if msg.Config != nil {
			ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
				DeviceConfig: *msg.Config,
			})
		}

		// follow future config updates
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			if event, ok := value.(events.DeviceConfigUpdatedEvent); ok {
				ctx.Send(ctx.Self(), event)
			}
		})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@config: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case events.DeviceConfigUpdatedEvent:
		state.logger.Info("hadiscovery@default: publishing discovery",
			zap.Int("entities", len(msg.Config.Entities)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			DeviceConfig: msg.Config,
		})
	case *actor.Restarting:
		state.unsubscribe()
	case *actor.Stopping:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) unsubscribe() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}
