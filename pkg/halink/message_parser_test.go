package halink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseClassifiesConfig(t *testing.T) {

	assert := assert.New(t)

	parser := NewMessageParser(zap.NewNop())

	msg := parser.Parse(`{"c":{"v":3,"s":{"Room Temp":{"dc":"temperature"}}}}`)

	assert.NotNil(msg)
	assert.Equal(MessageConfig, msg.Type)
	assert.NotNil(msg.Config)
	ent, ok := msg.Config.Entities["room_temp"]
	assert.True(ok)
	assert.Equal("temperature", ent.Fields["device_class"])
}

func TestParseClassifiesState(t *testing.T) {

	assert := assert.New(t)

	parser := NewMessageParser(zap.NewNop())

	msg := parser.Parse(`{"s":{"Room Temp":21.5,"humidity":{"value":40,"ts":1700000000},"raw":{"rssi":-70}}}`)

	assert.NotNil(msg)
	assert.Equal(MessageState, msg.Type)

	// bare scalar form
	temp := msg.State.Entities["room_temp"]
	assert.Equal(21.5, temp.Value)
	assert.Equal("Room Temp", temp.FriendlyKey)

	// explicit value form
	hum := msg.State.Entities["humidity"]
	assert.Equal(float64(40), hum.Value)
	assert.NotNil(hum.TS)
	assert.Equal(int64(1700000000), *hum.TS)

	// object without value is an attribute set
	raw := msg.State.Entities["raw"]
	assert.Nil(raw.Value)
	assert.Equal(float64(-70), raw.Attributes["rssi"])
}

func TestParseStateAlive(t *testing.T) {

	assert := assert.New(t)

	parser := NewMessageParser(zap.NewNop())

	msg := parser.Parse(`{"s":{"Alive":{"value":1,"attributes":{"rssi":-60}}}}`)

	assert.NotNil(msg)
	assert.NotNil(msg.State.Alive)
	assert.Equal(float64(1), msg.State.Alive.Value)
	assert.Equal(float64(-60), msg.State.Alive.Attributes["rssi"])
	assert.NotContains(msg.State.Entities, "alive")

	// bare scalar form
	msg = parser.Parse(`{"s":{"alive":0}}`)
	assert.NotNil(msg.State.Alive)
	assert.Equal(float64(0), msg.State.Alive.Value)
}

func TestParseClassifiesEvent(t *testing.T) {

	assert := assert.New(t)

	parser := NewMessageParser(zap.NewNop())

	// bare string form
	msg := parser.Parse(`{"e":"Button Pressed"}`)
	assert.NotNil(msg)
	assert.Equal(MessageEvent, msg.Type)
	assert.Len(msg.Events, 1)
	assert.Equal("button_pressed", msg.Events[0].Key)

	// object form with ts extraction
	msg = parser.Parse(`{"e":{"motion":{"ts":1700000000,"zone":"hall"}}}`)
	assert.Len(msg.Events, 1)
	assert.Equal("motion", msg.Events[0].Key)
	assert.NotNil(msg.Events[0].TS)
	assert.Equal(int64(1700000000), *msg.Events[0].TS)
	assert.Equal("hall", msg.Events[0].Attributes["zone"])
	assert.NotContains(msg.Events[0].Attributes, "ts")
}

func TestParsePriorityConfigOverStateOverEvent(t *testing.T) {

	assert := assert.New(t)

	parser := NewMessageParser(zap.NewNop())

	msg := parser.Parse(`{"s":{"a":1},"c":{"v":1},"e":"x"}`)
	assert.NotNil(msg)
	assert.Equal(MessageConfig, msg.Type)

	msg = parser.Parse(`{"s":{"a":1},"e":"x"}`)
	assert.NotNil(msg)
	assert.Equal(MessageState, msg.Type)
}

func TestParseMalformedFrames(t *testing.T) {

	assert := assert.New(t)

	parser := NewMessageParser(zap.NewNop())

	assert.Nil(parser.Parse(""))
	assert.Nil(parser.Parse("not json"))
	assert.Nil(parser.Parse(`[1,2,3]`))
	assert.Nil(parser.Parse(`{"unknown":1}`))
}
