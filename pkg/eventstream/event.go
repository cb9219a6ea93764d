package eventstream

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRunEvent is emitted for every normalized event of a run.
	EventTypeRunEvent = "switchboard.run.event"
)

// RunEvent is a transport-neutral envelope around one normalized event.
type RunEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Run           RunRef          `json:"run"`
	Seq           int64           `json:"seq"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
}

// RunRef identifies the run an event belongs to.
type RunRef struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
}

// NewRunEvent wraps one normalized event in a fresh envelope.
func NewRunEvent(run RunRef, seq int64, eventType string, payload json.RawMessage) *RunEvent {
	return &RunEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRunEvent,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Run:           run,
		Seq:           seq,
		Type:          eventType,
		Payload:       payload,
	}
}
