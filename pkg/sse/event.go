// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// normalizer for the agent and workflow execution log streams served by the
// orchestration backend.
//
// The backend runs in one of two modes. In "direct" mode each frame carries
// an explicit "event:" line; in "gateway" mode the event type has to be
// inferred from a "type" field inside the JSON body. The Reader reconciles
// both into a single sequence of Events.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bytes"
	"encoding/json"
)

const (
	// DefaultEventType is the event type in effect when no "event:" line
	// precedes a data line.
	DefaultEventType = "message"

	// ErrorEventType is reserved for the synthetic event delivered when a
	// stream cannot be opened.
	ErrorEventType = "error"
)

// Event is a single normalized event: the resolved event type paired with
// the augmented JSON payload.
type Event struct {
	// Type is the resolved event category, e.g. "thinking" or
	// "workflow_started". Values are opaque to this package.
	Type string

	// Payload is the normalized JSON object.
	Payload Payload
}

// Payload is the normalized JSON body of an event.
//
// The passthrough fields hold the raw JSON of the source field. A nil
// RawMessage means the field was absent; the literal null means the backend
// sent an explicit null.
type Payload struct {
	// Content is the best-effort human readable text of the event.
	Content string

	AgentID   json.RawMessage
	AgentName json.RawMessage
	Timestamp json.RawMessage
	Type      json.RawMessage
	Metadata  json.RawMessage

	// Fields holds every field of the source object, with "content"
	// overwritten by Content.
	Fields map[string]any

	// Raw is the data line exactly as received.
	Raw json.RawMessage
}

// NewErrorPayload builds the payload of a synthetic "error" event.
func NewErrorPayload(msg string) Payload {
	return Payload{
		Fields: map[string]any{"error": msg},
	}
}

// Has reports whether the source object carried the given field, including
// fields explicitly set to null.
func (p Payload) Has(key string) bool {
	_, ok := p.Fields[key]
	return ok
}

// String returns the field as a string, or "" when it is absent or not a
// string.
func (p Payload) String(key string) string {
	s, _ := p.Fields[key].(string)
	return s
}

// FromArray reports whether the payload was built from a JSON array body.
func (p Payload) FromArray() bool {
	raw := bytes.TrimSpace(p.Raw)
	return len(raw) > 0 && raw[0] == '['
}

// IsNull reports whether a passthrough field was sent as an explicit null.
func IsNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// MarshalJSON encodes the payload as a flat JSON object, the shape callers
// of the stream expect. A payload built from an array body encodes as that
// array.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.FromArray() {
		return p.Raw, nil
	}
	if p.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Fields)
}
