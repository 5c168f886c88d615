package halink

import (
	"go.uber.org/zap"
)

// StateParser normalizes raw STATE blocks. It deliberately knows nothing
// about the device config; undeclared keys are normalized like any other.
type StateParser struct {
	logger *zap.Logger
}

func NewStateParser(logger *zap.Logger) *StateParser {
	return &StateParser{logger: logger}
}

// ParseState walks every top-level key. A key normalizing to "alive" uses the
// alive rule, everything else the generic entity rule. A non-object root
// yields an empty document; per-entity failures skip only that entity.
func (p *StateParser) ParseState(raw any) StateDoc {
	doc := StateDoc{Entities: map[string]EntityState{}}

	root, ok := raw.(map[string]any)
	if !ok {
		p.logger.Warn("state: root is not an object")
		return doc
	}

	for key, value := range root {
		if NormalizeKey(key) == ReservedKeyAlive {
			alive := parseAlive(value)
			doc.Alive = &alive
			continue
		}
		ent, ok := p.parseEntityState(key, value)
		if !ok {
			continue
		}
		doc.Entities[ent.Key] = ent
	}
	return doc
}

// parseAlive accepts either the object form {value, attributes, ts} or a bare
// scalar treated as the value.
func parseAlive(raw any) AliveState {
	obj, ok := raw.(map[string]any)
	if !ok {
		return AliveState{Value: raw, Attributes: map[string]any{}}
	}
	return AliveState{
		Value:      obj["value"],
		Attributes: attributesOf(obj["attributes"]),
		TS:         timestampOf(obj["ts"]),
	}
}

// parseEntityState accepts the three wire shapes: bare scalar, object with an
// explicit "value" key, and object without one (the whole object is the
// attribute set).
func (p *StateParser) parseEntityState(originalKey string, raw any) (EntityState, bool) {
	key := NormalizeKey(originalKey)
	if key == "" {
		p.logger.Warn("state: key normalizes to empty", zap.String("key", originalKey))
		return EntityState{}, false
	}

	ent := EntityState{
		Key:         key,
		FriendlyKey: NormalizeFriendlyName(originalKey),
		Attributes:  map[string]any{},
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		ent.Value = raw
		return ent, true
	}
	if value, hasValue := obj["value"]; hasValue {
		ent.Value = value
		ent.Attributes = attributesOf(obj["attributes"])
		ent.TS = timestampOf(obj["ts"])
	} else {
		ent.Attributes = obj
	}
	return ent, true
}
