package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/jzolee/halink2mqtt/internal/config"
	"github.com/jzolee/halink2mqtt/internal/core/domain"
	"github.com/jzolee/halink2mqtt/internal/core/events"
	"github.com/jzolee/halink2mqtt/internal/util/actorutil"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// LinkActor owns the TCP link to one HaLink device. Protocol callbacks are
// turned into messages to self, so all state lives on the actor goroutine.
type LinkActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	client      *halink.Client
	eventStream *eventstream.EventStream
	logger      *zap.Logger

	deviceId     string
	deviceConfig *halink.ConfigDoc
	connected    bool
}

type linkConnectionState struct {
	Connected bool
}

type linkConfigUpdated struct {
	Config halink.ConfigDoc
}

type linkEntityState struct {
	Key   string
	State halink.EntityState
}

type linkAliveState struct {
	State halink.AliveState
}

type linkEventFired struct {
	Event halink.EventRecord
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewLinkActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *LinkActor {
	act := &LinkActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_LINK, logger),
		deviceId:    config.Device.DeviceId(),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *LinkActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *LinkActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("link@starting started")

		state.client = halink.NewClient(clientConfig(state.config.Device), halink.Callbacks{
			OnConfigUpdated: func(cfg halink.ConfigDoc) {
				ctx.Send(ctx.Self(), linkConfigUpdated{Config: cfg})
			},
			OnStateUpdated: func(key string, st halink.EntityState) {
				ctx.Send(ctx.Self(), linkEntityState{Key: key, State: st})
			},
			OnAliveUpdated: func(st halink.AliveState) {
				ctx.Send(ctx.Self(), linkAliveState{State: st})
			},
			OnEventFired: func(ev halink.EventRecord) {
				ctx.Send(ctx.Self(), linkEventFired{Event: ev})
			},
			OnConnectionStateChanged: func(connected bool) {
				ctx.Send(ctx.Self(), linkConnectionState{Connected: connected})
			},
		}, state.logger)
		state.client.Start(context.Background())

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("link@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *LinkActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("link@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_LINK,
			Healthy: true,
			State:   state.connectionStateString(),
		})
	case domain.GetDeviceConfigRequest:
		state.logger.Debug("link@default GetDeviceConfigRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetDeviceConfigResponse{
			Config: state.deviceConfig,
		})
	case domain.SendSetRequest:
		state.logger.Debug("link@default SendSetRequest",
			zap.String("key", msg.Key), zap.Any("value", msg.Value))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SendSetResponse {
			a := state.sendSet(msg.Key, msg.Value)
			return &a
		}),
			mapTaskResult[domain.SendSetResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SendSetResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingSend)
	case linkConnectionState:
		state.logger.Info("link: connection state", zap.Bool("connected", msg.Connected))
		state.connected = msg.Connected
		state.eventStream.Publish(events.ConnectionStateUpdateEvent{
			DeviceUpdateEventMixIn: state.eventMixIn(),
			Connected:              msg.Connected,
		})
	case linkConfigUpdated:
		state.logger.Info("link: device config updated",
			zap.Int("entities", len(msg.Config.Entities)))
		cfg := msg.Config
		state.deviceConfig = &cfg
		state.eventStream.Publish(events.DeviceConfigUpdatedEvent{
			DeviceUpdateEventMixIn: state.eventMixIn(),
			Config:                 cfg,
		})
	case linkEntityState:
		state.eventStream.Publish(events.EntityStateUpdateEvent{
			DeviceUpdateEventMixIn: state.eventMixIn(),
			Platform:               state.platformOf(msg.Key),
			State:                  msg.State,
		})
	case linkAliveState:
		state.eventStream.Publish(events.AliveStateUpdateEvent{
			DeviceUpdateEventMixIn: state.eventMixIn(),
			State:                  msg.State,
		})
	case linkEventFired:
		state.eventStream.Publish(events.DeviceEventFiredEvent{
			DeviceUpdateEventMixIn: state.eventMixIn(),
			Event:                  msg.Event,
		})
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("link@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *LinkActor) WaitingSend(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("link@waitingSend backgroundTaskResult",
			zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("link@waitingSend stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *LinkActor) sendSet(key string, value any) domain.SendSetResponse {
	err := state.client.SendSet(key, value)
	if err != nil {
		logger.Error(err)
		return domain.SendSetResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.SendSetResponse{}
}

// platformOf resolves the entity's platform from the latest config. Keys the
// device never declared surface as plain sensors.
func (state *LinkActor) platformOf(key string) string {
	if state.deviceConfig != nil {
		if spec, ok := state.deviceConfig.Entities[key]; ok {
			return spec.Platform
		}
	}
	return halink.PlatformSensor
}

func (state *LinkActor) eventMixIn() events.DeviceUpdateEventMixIn {
	return events.DeviceUpdateEventMixIn{DeviceId: state.deviceId}
}

func (state *LinkActor) connectionStateString() string {
	if state.connected {
		return "connected"
	}
	return "disconnected"
}

func (state *LinkActor) stop() {
	state.logger.Debug("link: stop")
	if state.client != nil {
		state.client.Stop()
	}
}

func clientConfig(cfg config.DeviceConfig) halink.ClientConfig {
	return halink.ClientConfig{
		Transport: halink.TransportConfig{
			Host:                 cfg.Host,
			Port:                 int(cfg.Port),
			ReconnectInterval:    time.Duration(cfg.ReconnectIntervalMillis) * time.Millisecond,
			MaxReconnectInterval: time.Duration(cfg.MaxReconnectIntervalMillis) * time.Millisecond,
			PingInterval:         time.Duration(cfg.PingIntervalMillis) * time.Millisecond,
		},
		ConfigTimeout: time.Duration(cfg.ConfigTimeoutMillis) * time.Millisecond,
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
