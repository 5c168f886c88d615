package halink

// Shorthand key tables for the compact HaLink wire protocol. Devices may send
// either the short or the long form of any key; expansion replaces known short
// keys with their canonical long form and passes unknown keys through untouched.

// Root level: the message envelope.
var rootKeys = map[string]string{
	"c": "config",
	"s": "state",
	"e": "event",
}

// Config level: keys found directly under the "config" block. The platform
// abbreviations (s/n/sw/bs/bn) live here too because the config block declares
// entities grouped by platform.
var configKeys = map[string]string{
	"v": "version",

	"d": "device",
	"b": "base",

	"s":  "sensor",
	"n":  "number",
	"sw": "switch",
	"bs": "binary_sensor",
	"bn": "button",

	"al": "alive",
	"ev": "events",

	"sm": "set_mode",
	"ts": "ts_enable",
	"dm": "delay_ms",

	// accepted for protocol V2 compatibility
	"bset": "batch_set",
	"lm":   "light_mode",
}

// Device metadata, under config["device"].
var deviceKeys = map[string]string{
	"m":   "manufacturer",
	"mod": "model",
	"sw":  "sw_version",
	"hw":  "hw_version",
	"n":   "name",
}

// Per-platform field tables, used inside config["base"] platform blocks.
var platformKeys = map[string]map[string]string{
	PlatformSensor: {
		"dc":   "device_class",
		"u":    "unit_of_measurement",
		"ic":   "icon",
		"ec":   "entity_category",
		"sc":   "state_class",
		"attr": "attributes",
	},
	PlatformNumber: {
		"dc":   "device_class",
		"u":    "unit_of_measurement",
		"ic":   "icon",
		"ec":   "entity_category",
		"sc":   "state_class",
		"attr": "attributes",
		"mn":   "min",
		"mx":   "max",
		"st":   "step",
		"m":    "mode",
	},
	PlatformSwitch: {
		"ic":   "icon",
		"ec":   "entity_category",
		"attr": "attributes",
	},
	PlatformBinarySensor: {
		"dc":   "device_class",
		"ic":   "icon",
		"ec":   "entity_category",
		"attr": "attributes",
	},
	PlatformSelect: {
		"dc":   "device_class",
		"ic":   "icon",
		"ec":   "entity_category",
		"attr": "attributes",
		"opt":  "options",
		"def":  "default",
	},
	PlatformButton: {
		"dc":   "device_class",
		"ic":   "icon",
		"ec":   "entity_category",
		"attr": "attributes",
		"pv":   "press_value",
	},
}

// Entity level: a universal table valid on every platform plus per-platform
// overrides. Overrides win on collision.
var entityKeys = map[string]map[string]string{
	"*": {
		"dc":   "device_class",
		"u":    "unit_of_measurement",
		"ic":   "icon",
		"ec":   "entity_category",
		"sc":   "state_class",
		"attr": "attributes",
		"as":   "assumed_state",
		"opt":  "options",
		"pv":   "press_value",
	},
	PlatformNumber: {
		"mn": "min",
		"mx": "max",
		"st": "step",
		"m":  "mode",
	},
}

// Expand replaces every top-level key of m found in table with its long form.
// Unknown keys pass through unchanged, which keeps the protocol
// forward-compatible with shorthands this build does not know about.
func Expand(m map[string]any, table map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if full, ok := table[k]; ok {
			out[full] = v
		} else {
			out[k] = v
		}
	}
	return out
}

func expandRootKeys(m map[string]any) map[string]any {
	return Expand(m, rootKeys)
}

func expandConfigKeys(m map[string]any) map[string]any {
	return Expand(m, configKeys)
}

func expandDeviceKeys(m map[string]any) map[string]any {
	return Expand(m, deviceKeys)
}

func expandPlatformKeys(m map[string]any, platform string) map[string]any {
	table, ok := platformKeys[platform]
	if !ok {
		return m
	}
	return Expand(m, table)
}

// expandEntityKeys unions the universal entity table with the
// platform-specific one, platform entries winning on collision.
func expandEntityKeys(m map[string]any, platform string) map[string]any {
	table := make(map[string]string)
	for k, v := range entityKeys["*"] {
		table[k] = v
	}
	for k, v := range entityKeys[platform] {
		table[k] = v
	}
	return Expand(m, table)
}
