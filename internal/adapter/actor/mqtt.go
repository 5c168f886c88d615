package actor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jzolee/halink2mqtt/internal/config"
	"github.com/jzolee/halink2mqtt/internal/core/domain"
	"github.com/jzolee/halink2mqtt/internal/core/events"
	"github.com/jzolee/halink2mqtt/internal/mqtt"
	"github.com/jzolee/halink2mqtt/internal/util/actorutil"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger

	pendingPublishes int
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type OnEventStreamMessage struct {
	message any
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// subscribe to MQTT command topic
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		state.logger.Debug("mqtt@starting subscribed")

		// subscribe to the internal event stream
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			ctx.Send(ctx.Self(), OnEventStreamMessage{message: value})
		})

		// init completed, transition to default state
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case OnEventStreamMessage:
		state.logger.Debug("mqtt@default OnEventStreamMessage",
			zap.String("type", fmt.Sprintf("%T", msg.message)))
		if event, ok := msg.message.(events.DeviceUpdateEvent); ok {
			state.publishDeviceUpdate(ctx, event)
		}
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishDiscoveryRequest")
		err := state.publishHomeAssistantDiscovery(msg.DeviceConfig)
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		})
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// event2MQTTMessages maps a device update event to raw broker messages. A
// state update can expand to two: the value and the attributes JSON.
func (state *MQTTActor) event2MQTTMessages(event events.DeviceUpdateEvent) []rawMessage {
	switch msg := event.(type) {
	case events.ConnectionStateUpdateEvent:
		return []rawMessage{{
			topic:   state.client.DeviceAvailabilityTopic(),
			message: availabilityPayload(msg.Connected),
			retain:  true,
		}}
	case events.AliveStateUpdateEvent:
		return []rawMessage{{
			topic:   state.client.DeviceAvailabilityTopic(),
			message: availabilityPayload(isTruthy(msg.State.Value)),
			retain:  true,
		}}
	case events.EntityStateUpdateEvent:
		out := []rawMessage{{
			topic:   state.client.EntityStateTopic(msg.Platform, msg.State.Key),
			message: statePayload(msg.Platform, msg.State.Value),
			retain:  msg.Platform != halink.PlatformSensor && msg.Platform != halink.PlatformBinarySensor,
		}}
		if len(msg.State.Attributes) > 0 {
			if payload, err := json.Marshal(msg.State.Attributes); err == nil {
				out = append(out, rawMessage{
					topic:   state.client.EntityAttributesTopic(msg.Platform, msg.State.Key),
					message: string(payload),
				})
			}
		}
		return out
	case events.DeviceEventFiredEvent:
		payload, err := json.Marshal(eventPayload(msg.Event))
		if err != nil {
			return nil
		}
		return []rawMessage{{
			topic:   state.client.EventTopic(msg.Event.Key),
			message: string(payload),
		}}
	default:
		return nil
	}
}

func (state *MQTTActor) publishDeviceUpdate(ctx actor.Context, event events.DeviceUpdateEvent) {
	msgs := state.event2MQTTMessages(event)
	if len(msgs) == 0 {
		return
	}
	for _, msg := range msgs {
		state.logger.Sugar().Debugf("mqtt@publish: update publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain, func(err error) {
			ctx.Send(ctx.Self(), publishResult{Error: err})
		}, 5*time.Second)
	}
	state.pendingPublishes = len(msgs)
	state.behavior.BecomeStacked(state.EventPublishResultReceive)
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error, return to default state once every publish settled
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		state.pendingPublishes--
		if state.pendingPublishes <= 0 {
			state.behavior.UnbecomeStacked()
			state.stash.UnstashOldest(ctx)
		}
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) publishHomeAssistantDiscovery(deviceConfig halink.ConfigDoc) error {
	bridgeDev := events.BridgeDevice(state.config.MQTT.BaseTopic)
	linkDev := events.LinkDevice(state.config.Device.DeviceId(), state.config.Device.Name, deviceConfig, bridgeDev)

	discoveries := map[string]mqtt.HADiscoveryConfig{
		state.client.HADiscoveryBridgeStateTopic(bridgeDev): mqtt.BridgeStateToHADiscoveryMessage(state.client, bridgeDev),
		state.client.HADiscoveryDeviceAliveTopic(linkDev):   mqtt.DeviceAliveToHADiscoveryMessage(state.client, linkDev),
	}
	for _, spec := range deviceConfig.Entities {
		discoveries[state.client.HADiscoveryEntityTopic(linkDev, spec)] = mqtt.EntitySpecToHADiscoveryMessage(state.client, linkDev, spec)
	}

	for topic, msg := range discoveries {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func availabilityPayload(online bool) string {
	if online {
		return mqtt.MQTT_PAYLOAD_ONLINE
	}
	return mqtt.MQTT_PAYLOAD_OFFLINE
}

// statePayload renders a raw device value into the payload Home Assistant
// expects for the platform.
func statePayload(platform string, value any) string {
	switch platform {
	case halink.PlatformSwitch, halink.PlatformBinarySensor:
		if isTruthy(value) {
			return mqtt.MQTT_PAYLOAD_ON
		}
		return mqtt.MQTT_PAYLOAD_OFF
	default:
		return fmt.Sprintf("%v", value)
	}
}

func eventPayload(ev halink.EventRecord) map[string]any {
	payload := map[string]any{
		"event": ev.Key,
	}
	if ev.Value != nil {
		payload["value"] = ev.Value
	}
	if ev.TS != nil {
		payload["ts"] = *ev.TS
	}
	for k, v := range ev.Attributes {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	return payload
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		lower := strings.ToLower(strings.TrimSpace(v))
		return lower != "" && lower != "0" && lower != "off" && lower != "false"
	case nil:
		return false
	}
	return true
}

// Dummy actor
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishMessageResponse{})
		}
	case domain.PublishDiscoveryRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishDiscoveryResponse{})
		}
	}
}
