package halink

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ConfigParser normalizes raw CONFIG blocks into a ConfigDoc.
type ConfigParser struct {
	logger *zap.Logger
}

func NewConfigParser(logger *zap.Logger) *ConfigParser {
	return &ConfigParser{logger: logger}
}

// ParseConfig expands all shorthand tables, resolves the SET protocol
// settings, processes the base defaults and collects the declared entities
// through the three-level merge. A malformed root yields an empty default
// document, never an error.
func (p *ConfigParser) ParseConfig(raw any) ConfigDoc {
	out := ConfigDoc{
		Device:   map[string]any{},
		Alive:    map[string]any{},
		Events:   map[string]any{},
		SetMode:  SetModeLight,
		Base:     map[string]map[string]any{},
		Entities: map[string]EntitySpec{},
	}

	root, ok := raw.(map[string]any)
	if !ok {
		p.logger.Warn("config: root is not an object")
		return out
	}
	root = expandConfigKeys(root)

	if v, ok := asInt(root["version"]); ok {
		out.Version = &v
	} else {
		p.logger.Warn("config: invalid or missing version")
	}

	if dev, ok := root["device"].(map[string]any); ok {
		out.Device = expandDeviceKeys(dev)
	}
	if alive, ok := root["alive"].(map[string]any); ok {
		out.Alive = alive
	}
	if events, ok := root["events"].(map[string]any); ok {
		out.Events = events
	}

	if mode, ok := root["set_mode"].(string); ok && mode != "" {
		out.SetMode = SetMode(mode)
	}
	if ts, ok := asBool(root["ts_enable"]); ok {
		out.TSEnable = ts
	}
	if delay, ok := asInt(root["delay_ms"]); ok {
		out.DelayMs = delay
	}

	out.Base = p.parseBase(root["base"])
	p.collectEntities(root, out.Base, out.Entities)

	return out
}

// parseBase expands the base block: the platform abbreviations at its top
// level reuse the config table, "*" holds general defaults, and recognized
// platform blocks get their platform field shorthand expanded too. Unknown
// keys are carried through raw.
func (p *ConfigParser) parseBase(raw any) map[string]map[string]any {
	base := map[string]map[string]any{}
	block, ok := raw.(map[string]any)
	if !ok {
		return base
	}
	block = expandConfigKeys(block)
	for key, val := range block {
		sub, ok := val.(map[string]any)
		if !ok {
			continue
		}
		if key == "*" {
			base["*"] = expandConfigKeys(sub)
			continue
		}
		pkey := NormalizeKey(key)
		if _, known := platformKeys[pkey]; known {
			base[pkey] = expandPlatformKeys(sub, pkey)
		} else {
			base[pkey] = sub
		}
	}
	return base
}

func (p *ConfigParser) collectEntities(root map[string]any, base map[string]map[string]any, entities map[string]EntitySpec) {
	globalBase := base["*"]

	for _, platform := range entityPlatforms {
		block, ok := root[platform].(map[string]any)
		if !ok {
			continue
		}
		platformBase := base[platform]

		for friendlyName, rawDef := range block {
			def, ok := rawDef.(map[string]any)
			if !ok {
				def = map[string]any{}
			}
			def = expandEntityKeys(def, platform)

			key := NormalizeKey(friendlyName)
			if key == "" {
				p.logger.Warn("config: entity name normalizes to empty key", zap.String("name", friendlyName))
				continue
			}
			if key == ReservedKeyAlive {
				p.logger.Warn("config: ignoring entity with reserved key", zap.String("name", friendlyName))
				continue
			}

			fields := deepMerge(globalBase, platformBase)
			fields = deepMerge(fields, def)
			attrs := mergeAttributes(
				attributeBlock(globalBase),
				attributeBlock(platformBase),
				attributeBlock(def),
			)
			delete(fields, "attributes")

			entities[key] = EntitySpec{
				Key:          key,
				Platform:     platform,
				FriendlyName: NormalizeFriendlyName(friendlyName),
				Fields:       fields,
				Attributes:   attrs,
			}
		}
	}
}

func attributeBlock(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	if attrs, ok := m["attributes"].(map[string]any); ok {
		return attrs
	}
	return nil
}

// deepMerge copies a and overlays b on it. Values merge recursively when both
// sides are objects; otherwise b wins.
func deepMerge(a, b map[string]any) map[string]any {
	result := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		result[k] = v
	}
	for k, v := range b {
		if prev, ok := result[k].(map[string]any); ok {
			if next, ok := v.(map[string]any); ok {
				result[k] = deepMerge(prev, next)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// mergeAttributes is a shallow union, later maps winning on conflicts.
func mergeAttributes(maps ...map[string]any) map[string]any {
	merged := map[string]any{}
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		// JSON numbers decode as float64; only accept integral values
		if t == float64(int(t)) {
			return int(t), true
		}
	case int:
		return t, true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b, true
		}
	}
	return false, false
}
