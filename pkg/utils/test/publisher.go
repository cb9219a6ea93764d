package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/switchboard/pkg/eventstream"
)

// MockPublisher is a test publisher that records every published event.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.RunEvent
	closed bool

	// FailPublish causes Publish to return an error.
	FailPublish bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, event *eventstream.RunEvent) error {
	if event == nil {
		return eventstream.ErrNilRunEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPublish {
		return errors.New("mock publish failure")
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []*eventstream.RunEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.RunEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
