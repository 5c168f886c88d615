package halink

// Supported entity platforms. Button is recognized by the shorthand tables but
// declares no entities of its own; buttons act through SET only.
const (
	PlatformSensor       = "sensor"
	PlatformNumber       = "number"
	PlatformSwitch       = "switch"
	PlatformBinarySensor = "binary_sensor"
	PlatformSelect       = "select"
	PlatformButton       = "button"
)

// entityPlatforms is the fixed iteration order for config entity collection.
// Later platforms win on normalized key collisions.
var entityPlatforms = []string{
	PlatformSensor,
	PlatformNumber,
	PlatformSwitch,
	PlatformBinarySensor,
	PlatformSelect,
}

// ReservedKeyAlive is the liveness/diagnostic channel. It can never be
// declared as an entity.
const ReservedKeyAlive = "alive"

type MessageType string

const (
	MessageConfig MessageType = "config"
	MessageState  MessageType = "state"
	MessageEvent  MessageType = "event"
)

// Message is the classified result of one inbound frame.
type Message struct {
	Type   MessageType
	Config *ConfigDoc
	State  *StateDoc
	Events []EventRecord
}

type SetMode string

const (
	SetModeLight  SetMode = "light"
	SetModeObject SetMode = "object"
)

// ConfigDoc is the normalized form of a CONFIG frame.
type ConfigDoc struct {
	Version  *int
	Device   map[string]any
	Alive    map[string]any
	Events   map[string]any
	SetMode  SetMode
	TSEnable bool
	DelayMs  int
	Base     map[string]map[string]any
	Entities map[string]EntitySpec
}

// EntitySpec is one declared entity after the three-level merge
// (global base -> platform base -> entity override).
type EntitySpec struct {
	Key          string
	Platform     string
	FriendlyName string
	// Fields holds the merged scalar configuration (device_class, icon,
	// unit_of_measurement, min/max/step, options, press_value, ...).
	Fields map[string]any
	// Attributes is the independently merged nested "attributes" map.
	Attributes map[string]any
}

// StringField returns a scalar config field as string, or "" when absent or
// not a string.
func (e EntitySpec) StringField(name string) string {
	if s, ok := e.Fields[name].(string); ok {
		return s
	}
	return ""
}

// FloatField returns a numeric config field, ok reporting presence.
func (e EntitySpec) FloatField(name string) (float64, bool) {
	switch v := e.Fields[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// AliveState is the parsed reserved alive channel of a STATE frame.
type AliveState struct {
	Value      any
	Attributes map[string]any
	TS         *int64
}

// EntityState is one per-entity entry of a STATE frame.
type EntityState struct {
	Key         string
	FriendlyKey string
	Value       any
	Attributes  map[string]any
	TS          *int64
}

// StateDoc is the normalized form of a STATE frame.
type StateDoc struct {
	Alive    *AliveState
	Entities map[string]EntityState
}

// EventRecord is one normalized ad hoc event. Events need no declaration in
// the device config.
type EventRecord struct {
	Key         string
	FriendlyKey string
	Value       any
	Attributes  map[string]any
	TS          *int64
}

// timestampOf extracts an integer "ts" wire value. JSON numbers decode as
// float64; anything non-numeric maps to nil.
func timestampOf(v any) *int64 {
	switch t := v.(type) {
	case float64:
		ts := int64(t)
		return &ts
	case int:
		ts := int64(t)
		return &ts
	case int64:
		return &t
	}
	return nil
}

func attributesOf(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
