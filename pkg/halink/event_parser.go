package halink

import (
	"go.uber.org/zap"
)

// EventParser normalizes raw EVENT blocks. Events are dynamic: any key is
// accepted without declaration.
type EventParser struct {
	logger *zap.Logger
}

func NewEventParser(logger *zap.Logger) *EventParser {
	return &EventParser{logger: logger}
}

// ParseEvent accepts a bare string (single event, no value) or an object of
// key/value pairs. Unparseable entries are skipped; the rest of the batch
// still succeeds.
func (p *EventParser) ParseEvent(raw any) []EventRecord {
	var events []EventRecord

	switch block := raw.(type) {
	case string:
		if ev, ok := p.parseNamedEvent(block, nil, false); ok {
			events = append(events, ev)
		}
	case map[string]any:
		for key, val := range block {
			if ev, ok := p.parseNamedEvent(key, val, true); ok {
				events = append(events, ev)
			}
		}
	default:
		p.logger.Warn("event: root must be a string or an object")
	}
	return events
}

func (p *EventParser) parseNamedEvent(key string, val any, hasValue bool) (EventRecord, bool) {
	norm := NormalizeKey(key)
	if norm == "" {
		p.logger.Warn("event: key normalizes to empty", zap.String("key", key))
		return EventRecord{}, false
	}

	ev := EventRecord{
		Key:         norm,
		FriendlyKey: NormalizeFriendlyName(key),
		Attributes:  map[string]any{},
	}
	if !hasValue {
		return ev, true
	}

	switch v := val.(type) {
	case string:
		ev.Value = v
	case map[string]any:
		ev.TS = timestampOf(v["ts"])
		attrs := make(map[string]any, len(v))
		for k, av := range v {
			if k == "ts" {
				continue
			}
			attrs[k] = av
		}
		ev.Attributes = attrs
	default:
		p.logger.Warn("event: unsupported value shape", zap.String("key", key))
		return EventRecord{}, false
	}
	return ev, true
}
