package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/switchboard/pkg/storage"
	"github.com/papercomputeco/switchboard/pkg/storage/inmemory"
)

// FlakyDriver wraps an in-memory driver and fails AppendEvent on demand.
type FlakyDriver struct {
	*inmemory.Driver

	// FailAppend causes AppendEvent to return an error.
	FailAppend bool
}

// NewFlakyDriver creates a new FlakyDriver.
func NewFlakyDriver() *FlakyDriver {
	return &FlakyDriver{Driver: inmemory.NewDriver()}
}

func (d *FlakyDriver) AppendEvent(ctx context.Context, ev *storage.RecordedEvent) error {
	if d.FailAppend {
		return errors.New("mock append failure")
	}
	return d.Driver.AppendEvent(ctx, ev)
}
