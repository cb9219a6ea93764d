package sse

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Parser classifies complete lines and tracks the event type announced by
// the most recent "event:" line.
//
// An "event:" line applies only to the single data line that follows it:
// after every successfully parsed data line the cursor returns to
// DefaultEventType.
type Parser struct {
	current  string
	logger   *zap.Logger
	observer Observer
}

// NewParser returns a Parser with its cursor at DefaultEventType.
func NewParser(opts ...Option) *Parser {
	o := newOptions(opts)
	return &Parser{
		current:  DefaultEventType,
		logger:   o.logger,
		observer: o.observer,
	}
}

// CurrentEventType returns the event type that would apply to the next
// data line.
func (p *Parser) CurrentEventType() string {
	return p.current
}

// ParseLine processes one complete line. It returns the normalized event
// and true when the line produced one.
func (p *Parser) ParseLine(line string) (*Event, bool) {
	if value, ok := strings.CutPrefix(line, eventPrefix); ok {
		p.current = strings.TrimSpace(value)
		return nil, false
	}

	value, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return nil, false
	}

	data := strings.TrimSpace(value)
	if data == "" {
		return nil, false
	}

	if data[0] != '{' && data[0] != '[' {
		if isConnectNotice(data) {
			p.current = DefaultEventType
			p.observer.FrameSkipped(SkipConnectNotice)
			return nil, false
		}

		p.logger.Debug("skipping non-JSON data line", zap.String("data", data))
		p.observer.FrameSkipped(SkipNonJSON)
		return nil, false
	}

	ev, err := p.decode(data)
	if err != nil {
		p.logger.Debug("skipping malformed JSON data line",
			zap.Error(err),
			zap.String("data", data),
		)
		p.observer.FrameSkipped(SkipInvalidJSON)
		return nil, false
	}

	p.current = DefaultEventType
	p.observer.EventEmitted(ev.Type)
	return ev, true
}

// decode parses a JSON data line and resolves it against the cursor.
func (p *Parser) decode(data string) (*Event, error) {
	raw := []byte(data)

	if data[0] == '[' {
		payload, err := arrayPayload(raw)
		if err != nil {
			return nil, err
		}
		return &Event{Type: p.current, Payload: payload}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	return &Event{
		Type:    resolveEventType(p.current, obj),
		Payload: buildPayload(raw, obj),
	}, nil
}

// isConnectNotice reports whether a non-JSON data line is the backend's
// connection-established notice.
func isConnectNotice(data string) bool {
	return data == "Connected" || strings.Contains(strings.ToLower(data), "connect")
}
