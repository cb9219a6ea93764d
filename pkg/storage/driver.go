// Package storage defines how run transcripts are persisted.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// RunKind distinguishes agent runs from workflow runs.
type RunKind string

const (
	RunKindAgent    RunKind = "agent"
	RunKindWorkflow RunKind = "workflow"
)

// Run is one execution stream opened against the backend.
type Run struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	TargetID  string    `json:"target_id"`
	Input     string    `json:"input,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// RecordedEvent is one normalized event of a run, in arrival order.
type RecordedEvent struct {
	RunID      string          `json:"run_id"`
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Driver defines the interface for persisting and retrieving run
// transcripts in a storage backend.
type Driver interface {
	// PutRun stores a run. Storing a run whose ID already exists is a no-op.
	PutRun(ctx context.Context, run *Run) error

	// AppendEvent stores one event of a run. The run must exist.
	AppendEvent(ctx context.Context, ev *RecordedEvent) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns up to limit runs, most recent first. A limit of zero
	// or less returns every run.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Events returns the events of a run ordered by sequence number.
	Events(ctx context.Context, runID string) ([]*RecordedEvent, error)

	// Close closes the store and releases any resources.
	Close() error
}
