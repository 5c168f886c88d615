package mqtt

import (
	"testing"

	"github.com/jzolee/halink2mqtt/internal/config"
	"github.com/jzolee/halink2mqtt/internal/core/events"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/stretchr/testify/assert"
)

func testClient() *MQTTClient {
	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "halink",
		},
	}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestEntityDiscoverySensor(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	dev := events.Device{Id: "halink_dev"}
	spec := halink.EntitySpec{
		Key:          "room_temp",
		Platform:     halink.PlatformSensor,
		FriendlyName: "Room Temp",
		Fields: map[string]any{
			"device_class":        "temperature",
			"unit_of_measurement": "°C",
		},
	}

	msg := EntitySpecToHADiscoveryMessage(client, dev, spec)

	assert.Equal("Room Temp", msg.Name)
	assert.Equal("halink_dev_room_temp", msg.UniqueId)
	assert.Equal("halink/sensor/room_temp/state", msg.StateTopic)
	assert.Equal("halink/sensor/room_temp/attributes", msg.JsonAttributesTopic)
	assert.Equal("temperature", msg.DeviceClass)
	assert.Equal("°C", msg.UnitOfMeasurement)
	assert.Empty(msg.CommandTopic)
	assert.Equal("homeassistant/sensor/halink_dev/room_temp/config", client.HADiscoveryEntityTopic(dev, spec))
}

func TestDiscoveryTopicPrefixConfigurable(t *testing.T) {

	assert := assert.New(t)

	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "halink",
			HADiscoveryTopic: "custom_ha",
		},
	}
	client := CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
	dev := events.Device{Id: "halink_dev"}
	spec := halink.EntitySpec{Key: "relay", Platform: halink.PlatformSwitch}

	assert.Equal("custom_ha/switch/halink_dev/relay/config", client.HADiscoveryEntityTopic(dev, spec))
	assert.Equal("custom_ha/binary_sensor/halink_dev/bridge_state/config", client.HADiscoveryBridgeStateTopic(dev))
	assert.Equal("custom_ha/binary_sensor/halink_dev/device_alive/config", client.HADiscoveryDeviceAliveTopic(dev))
}

func TestEntityDiscoverySwitch(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	dev := events.Device{Id: "halink_dev"}
	spec := halink.EntitySpec{
		Key:      "relay",
		Platform: halink.PlatformSwitch,
	}

	msg := EntitySpecToHADiscoveryMessage(client, dev, spec)

	assert.Equal("relay", msg.Name, "key used when no friendly name")
	assert.Equal("halink/switch/relay/command", msg.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_ON, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFF, msg.PayloadOff)
}

func TestEntityDiscoveryNumberAndSelect(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	dev := events.Device{Id: "halink_dev"}

	number := EntitySpecToHADiscoveryMessage(client, dev, halink.EntitySpec{
		Key:      "target_temp",
		Platform: halink.PlatformNumber,
		Fields: map[string]any{
			"min":  float64(5),
			"max":  float64(30),
			"step": 0.5,
			"mode": "box",
		},
	})
	assert.Equal("halink/number/target_temp/set", number.CommandTopic)
	assert.Equal(float64(5), number.Min)
	assert.Equal(float64(30), number.Max)
	assert.Equal(0.5, number.Step)
	assert.Equal("box", number.Mode)

	sel := EntitySpecToHADiscoveryMessage(client, dev, halink.EntitySpec{
		Key:      "fan_mode",
		Platform: halink.PlatformSelect,
		Fields: map[string]any{
			"options": []any{"low", "high"},
		},
	})
	assert.Equal("halink/select/fan_mode/set", sel.CommandTopic)
	assert.Equal([]string{"low", "high"}, sel.Options)
}

func TestEntityDiscoveryButton(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	dev := events.Device{Id: "halink_dev"}

	msg := EntitySpecToHADiscoveryMessage(client, dev, halink.EntitySpec{
		Key:      "restart",
		Platform: halink.PlatformButton,
	})

	assert.Empty(msg.StateTopic, "buttons have no state")
	assert.Equal("halink/button/restart/press", msg.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_PRESS, msg.PayloadPress)
}

func TestBridgeAndAliveDiscovery(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	dev := events.Device{Id: "halink_dev"}

	bridge := BridgeStateToHADiscoveryMessage(client, dev)
	assert.Equal("halink/bridge/state", bridge.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)

	alive := DeviceAliveToHADiscoveryMessage(client, dev)
	assert.Equal("halink/availability", alive.StateTopic)
	assert.Equal("halink/bridge/state", alive.AvTopic)
	assert.Equal("diagnostic", alive.EntityCategory)
}
