package actor

import (
	"testing"

	"github.com/jzolee/halink2mqtt/internal/mqtt"
	"github.com/jzolee/halink2mqtt/pkg/halink"

	"github.com/stretchr/testify/assert"
)

func TestStatePayload(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(mqtt.MQTT_PAYLOAD_ON, statePayload(halink.PlatformSwitch, float64(1)))
	assert.Equal(mqtt.MQTT_PAYLOAD_OFF, statePayload(halink.PlatformSwitch, float64(0)))
	assert.Equal(mqtt.MQTT_PAYLOAD_ON, statePayload(halink.PlatformBinarySensor, true))
	assert.Equal("21.5", statePayload(halink.PlatformSensor, 21.5))
	assert.Equal("high", statePayload(halink.PlatformSelect, "high"))
}

func TestIsTruthy(t *testing.T) {

	assert := assert.New(t)

	assert.True(isTruthy(true))
	assert.True(isTruthy(float64(2)))
	assert.True(isTruthy("on"))
	assert.True(isTruthy("anything"))

	assert.False(isTruthy(false))
	assert.False(isTruthy(float64(0)))
	assert.False(isTruthy(""))
	assert.False(isTruthy("off"))
	assert.False(isTruthy("false"))
	assert.False(isTruthy("0"))
	assert.False(isTruthy(nil))
}

func TestEventPayload(t *testing.T) {

	assert := assert.New(t)

	ts := int64(1700000000)
	payload := eventPayload(halink.EventRecord{
		Key:        "motion",
		TS:         &ts,
		Attributes: map[string]any{"zone": "hall", "event": "ignored collision"},
	})

	assert.Equal("motion", payload["event"], "event name survives attribute collision")
	assert.Equal(ts, payload["ts"])
	assert.Equal("hall", payload["zone"])
}

func TestAvailabilityPayload(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(mqtt.MQTT_PAYLOAD_ONLINE, availabilityPayload(true))
	assert.Equal(mqtt.MQTT_PAYLOAD_OFFLINE, availabilityPayload(false))
}
