package sse

import (
	"bytes"
	"encoding/json"
)

// typeAliases maps the "type" field emitted by the gateway onto the event
// types emitted by the backend in direct mode. Unmapped values pass through.
var typeAliases = map[string]string{
	"thought":      "thinking",
	"action":       "action",
	"action_input": "action_input",
	"observation":  "observation",
	"final_answer": "final_answer",
}

// contentKeys lists the fields searched for display text, highest priority
// first.
var contentKeys = []string{"content", "answer", "message", "thought", "action", "observation"}

// passthroughKeys are always carried onto the normalized payload.
var passthroughKeys = []string{"agent_id", "agent_name", "timestamp", "type", "metadata"}

// resolveEventType reconciles the event line with the body's own "type"
// field.
func resolveEventType(current string, obj map[string]json.RawMessage) string {
	eventType := current
	bodyType, _ := stringField(obj, "type")

	if eventType == DefaultEventType && bodyType != "" {
		if alias, ok := typeAliases[bodyType]; ok {
			eventType = alias
		} else {
			eventType = bodyType
		}
	}

	// The backend only distinguishes the two halves of a tool call through
	// the body.
	if eventType == "action" && bodyType == "action_input" {
		eventType = "action_input"
	}

	return eventType
}

// extractContent returns the first non-empty string among contentKeys.
func extractContent(obj map[string]json.RawMessage) string {
	for _, key := range contentKeys {
		if s, ok := stringField(obj, key); ok && s != "" {
			return s
		}
	}
	return ""
}

// buildPayload assembles the normalized payload for a parsed object.
func buildPayload(raw []byte, obj map[string]json.RawMessage) Payload {
	content := extractContent(obj)

	fields := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		val, err := decodeValue(v)
		if err != nil {
			continue
		}
		fields[k] = val
	}
	fields["content"] = content

	p := Payload{
		Content: content,
		Fields:  fields,
		Raw:     append(json.RawMessage(nil), raw...),
	}

	for _, key := range passthroughKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		v = append(json.RawMessage(nil), v...)
		switch key {
		case "agent_id":
			p.AgentID = v
		case "agent_name":
			p.AgentName = v
		case "timestamp":
			p.Timestamp = v
		case "type":
			p.Type = v
		case "metadata":
			p.Metadata = v
		}
	}

	return p
}

// decodeValue decodes a field value, keeping numbers as json.Number so
// integers beyond float64 precision survive re-encoding.
func decodeValue(v json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var val any
	if err := dec.Decode(&val); err != nil {
		return nil, err
	}
	return val, nil
}

// stringField decodes obj[key] as a string. ok is false when the field is
// absent or holds a non-string value.
func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// arrayPayload builds the payload of an array body. Arrays carry no fields,
// so content is empty and the array itself is kept in Raw.
func arrayPayload(raw []byte) (Payload, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return Payload{}, err
	}
	return Payload{
		Fields: map[string]any{"content": ""},
		Raw:    append(json.RawMessage(nil), raw...),
	}, nil
}

// DecodePayload normalizes a single JSON object or array the same way the
// body of a data line is normalized. Recorded events are replayed through it.
func DecodePayload(raw []byte) (Payload, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return arrayPayload(trimmed)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Payload{}, err
	}
	return buildPayload(raw, obj), nil
}
