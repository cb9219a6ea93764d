package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/switchboard/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex for locking runs and events
	mu sync.RWMutex

	// runs is keyed by run ID
	runs map[string]*storage.Run

	// events holds each run's events in append order
	events map[string][]*storage.RecordedEvent
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		runs:   make(map[string]*storage.Run),
		events: make(map[string][]*storage.RecordedEvent),
	}
}

// PutRun stores a run. Existing runs are left untouched.
func (s *Driver) PutRun(_ context.Context, run *storage.Run) error {
	if run == nil {
		return errors.New("cannot store nil run")
	}
	if run.ID == "" {
		return errors.New("cannot store run without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return nil
	}

	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// AppendEvent stores one event of an existing run.
func (s *Driver) AppendEvent(_ context.Context, ev *storage.RecordedEvent) error {
	if ev == nil {
		return errors.New("cannot store nil event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[ev.RunID]; !ok {
		return fmt.Errorf("appending event: %w", storage.NotFoundError{ID: ev.RunID})
	}

	cp := *ev
	s.events[ev.RunID] = append(s.events[ev.RunID], &cp)
	return nil
}

// GetRun retrieves a run by ID.
func (s *Driver) GetRun(_ context.Context, id string) (*storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	cp := *run
	return &cp, nil
}

// ListRuns returns runs, most recent first.
func (s *Driver) ListRuns(_ context.Context, limit int) ([]*storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*storage.Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		runs = append(runs, &cp)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Events returns the events of a run ordered by sequence number.
func (s *Driver) Events(_ context.Context, runID string) ([]*storage.RecordedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, storage.NotFoundError{ID: runID}
	}

	events := make([]*storage.RecordedEvent, len(s.events[runID]))
	copy(events, s.events[runID])

	// Workers may append out of order.
	sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}

// Count returns the number of runs in the in-memory store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}
