package actorutil

import (
	"testing"

	"github.com/jzolee/halink2mqtt/internal/core/domain"
	"github.com/jzolee/halink2mqtt/internal/mqtt"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/stretchr/testify/assert"
)

func TestParsedMQTTCommandToSetRequest(t *testing.T) {

	assert := assert.New(t)

	req, err := ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "relay", Platform: halink.PlatformSwitch, Payload: "on",
	}, nil)
	assert.NoError(err)
	assert.Equal(domain.SendSetRequest{Key: "relay", Value: 1}, req)

	req, err = ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "relay", Platform: halink.PlatformSwitch, Payload: "off",
	}, nil)
	assert.NoError(err)
	assert.Equal(domain.SendSetRequest{Key: "relay", Value: 0}, req)

	req, err = ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "target_temp", Platform: halink.PlatformNumber, Payload: "21.5",
	}, nil)
	assert.NoError(err)
	assert.Equal(domain.SendSetRequest{Key: "target_temp", Value: 21.5}, req)

	req, err = ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "fan_mode", Platform: halink.PlatformSelect, Payload: "high",
	}, nil)
	assert.NoError(err)
	assert.Equal(domain.SendSetRequest{Key: "fan_mode", Value: "high"}, req)
}

func TestParsedMQTTCommandNumberInvalid(t *testing.T) {

	assert := assert.New(t)

	req, err := ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "target_temp", Platform: halink.PlatformNumber, Payload: "not a number",
	}, nil)
	assert.Error(err)
	assert.Nil(req)
}

func TestParsedMQTTCommandButtonPressValue(t *testing.T) {

	assert := assert.New(t)

	// default press value
	req, err := ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "restart", Platform: halink.PlatformButton, Payload: "press",
	}, nil)
	assert.NoError(err)
	assert.Equal(domain.SendSetRequest{Key: "restart", Value: 1}, req)

	// configured press value wins
	cfg := &halink.ConfigDoc{
		Entities: map[string]halink.EntitySpec{
			"restart": {
				Key:      "restart",
				Platform: halink.PlatformButton,
				Fields:   map[string]any{"press_value": "go"},
			},
		},
	}
	req, err = ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "restart", Platform: halink.PlatformButton, Payload: "press",
	}, cfg)
	assert.NoError(err)
	assert.Equal(domain.SendSetRequest{Key: "restart", Value: "go"}, req)
}

func TestParsedMQTTCommandUnknownPlatform(t *testing.T) {

	assert := assert.New(t)

	req, err := ParsedMQTTCommandToSetRequest(mqtt.ParsedMQTTCommand{
		EntityId: "x", Platform: halink.PlatformSensor, Payload: "1",
	}, nil)
	assert.Error(err)
	assert.Nil(req)
}
