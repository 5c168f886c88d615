package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/jzolee/halink2mqtt/internal/config"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
	MQTT_PAYLOAD_PRESS   = "press"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("halink_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:              mqtt.NewClient(opts),
		cfg:                 cfg.MQTT,
		switchCommandRegexp: commandExtractor(cfg.MQTT.BaseTopic, halink.PlatformSwitch, "command"),
		numberCommandRegexp: commandExtractor(cfg.MQTT.BaseTopic, halink.PlatformNumber, "set"),
		selectCommandRegexp: commandExtractor(cfg.MQTT.BaseTopic, halink.PlatformSelect, "set"),
		buttonCommandRegexp: commandExtractor(cfg.MQTT.BaseTopic, halink.PlatformButton, "press"),
	}
}

type MQTTClient struct {
	client              mqtt.Client
	cfg                 config.MQTTConfig
	switchCommandRegexp *regexp.Regexp
	numberCommandRegexp *regexp.Regexp
	selectCommandRegexp *regexp.Regexp
	buttonCommandRegexp *regexp.Regexp
}

type ParsedMQTTCommand struct {
	EntityId string
	Platform string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) haDiscoveryTopic() string {
	if c.cfg.HADiscoveryTopic == "" {
		return "homeassistant"
	}
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) DeviceAvailabilityTopic() string {
	return fmt.Sprintf("%s/availability", c.baseTopic())
}

func (c *MQTTClient) EntityStateTopic(platform, entityId string) string {
	return fmt.Sprintf("%s/%s/%s/state", c.baseTopic(), platform, entityId)
}

func (c *MQTTClient) EntityAttributesTopic(platform, entityId string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", c.baseTopic(), platform, entityId)
}

func (c *MQTTClient) SwitchCommandTopic(entityId string) string {
	return fmt.Sprintf("%s/switch/%s/command", c.baseTopic(), entityId)
}

func (c *MQTTClient) NumberCommandTopic(entityId string) string {
	return fmt.Sprintf("%s/number/%s/set", c.baseTopic(), entityId)
}

func (c *MQTTClient) SelectCommandTopic(entityId string) string {
	return fmt.Sprintf("%s/select/%s/set", c.baseTopic(), entityId)
}

func (c *MQTTClient) ButtonCommandTopic(entityId string) string {
	return fmt.Sprintf("%s/button/%s/press", c.baseTopic(), entityId)
}

func (c *MQTTClient) EventTopic(eventName string) string {
	return fmt.Sprintf("%s/event/%s", c.baseTopic(), eventName)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	if cmd, err := c.parseSwitchMQTTCommand(msg); err == nil {
		return cmd, nil
	}
	if cmd, err := c.parseNumberMQTTCommand(msg); err == nil {
		return cmd, nil
	}
	if cmd, err := c.parseSelectMQTTCommand(msg); err == nil {
		return cmd, nil
	}
	return c.parseButtonMQTTCommand(msg)
}

func (c *MQTTClient) parseSwitchMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	matches := c.switchCommandRegexp.FindAllStringSubmatch(msg.Topic(), 1)
	if len(matches) == 0 || len(matches[0]) != 2 {
		return nil, errors.New("invalid switch command")
	}
	return &ParsedMQTTCommand{
		EntityId: matches[0][1],
		Platform: halink.PlatformSwitch,
		Payload:  string(msg.Payload()),
	}, nil
}

func (c *MQTTClient) parseNumberMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	matches := c.numberCommandRegexp.FindAllStringSubmatch(msg.Topic(), 1)
	if len(matches) == 0 || len(matches[0]) != 2 {
		return nil, errors.New("invalid number command")
	}

	// payload must be a valid number
	_, err := strconv.ParseFloat(string(msg.Payload()), 64)
	if err != nil {
		return nil, err
	}

	return &ParsedMQTTCommand{
		EntityId: matches[0][1],
		Platform: halink.PlatformNumber,
		Payload:  string(msg.Payload()),
	}, nil
}

func (c *MQTTClient) parseSelectMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	matches := c.selectCommandRegexp.FindAllStringSubmatch(msg.Topic(), 1)
	if len(matches) == 0 || len(matches[0]) != 2 {
		return nil, errors.New("invalid select command")
	}
	return &ParsedMQTTCommand{
		EntityId: matches[0][1],
		Platform: halink.PlatformSelect,
		Payload:  string(msg.Payload()),
	}, nil
}

func (c *MQTTClient) parseButtonMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	matches := c.buttonCommandRegexp.FindAllStringSubmatch(msg.Topic(), 1)
	if len(matches) == 0 || len(matches[0]) != 2 {
		return nil, errors.New("invalid button command")
	}
	return &ParsedMQTTCommand{
		EntityId: matches[0][1],
		Platform: halink.PlatformButton,
		Payload:  string(msg.Payload()),
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/#", c.baseTopic())
}

func commandExtractor(baseTopic, platform, verb string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("%s/%s/([a-zA-Z0-9_]+)/%s", baseTopic, platform, verb))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
