package halink

import (
	"encoding/json"

	"go.uber.org/zap"
)

// MessageParser classifies a raw text frame as CONFIG, STATE or EVENT and
// hands the payload to the matching normalizer.
type MessageParser struct {
	config *ConfigParser
	state  *StateParser
	event  *EventParser
	logger *zap.Logger
}

func NewMessageParser(logger *zap.Logger) *MessageParser {
	return &MessageParser{
		config: NewConfigParser(logger),
		state:  NewStateParser(logger),
		event:  NewEventParser(logger),
		logger: logger,
	}
}

// Parse decodes one frame. Malformed frames return nil; they are logged and
// dropped without affecting the connection. When more than one root key is
// present, config wins over state wins over event; devices are not expected
// to do that, but it is tolerated rather than rejected.
func (p *MessageParser) Parse(raw string) *Message {
	if raw == "" {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		p.logger.Warn("message: JSON decoding failed", zap.Error(err))
		return nil
	}
	data = expandRootKeys(data)

	if block, ok := data["config"]; ok {
		doc := p.config.ParseConfig(block)
		return &Message{Type: MessageConfig, Config: &doc}
	}
	if block, ok := data["state"]; ok {
		doc := p.state.ParseState(block)
		return &Message{Type: MessageState, State: &doc}
	}
	if block, ok := data["event"]; ok {
		return &Message{Type: MessageEvent, Events: p.event.ParseEvent(block)}
	}

	p.logger.Warn("message: no known root key", zap.Int("keys", len(data)))
	return nil
}
