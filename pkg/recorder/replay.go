package recorder

import (
	"context"
	"fmt"

	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
)

// Replay feeds the recorded transcript of a run to handler in sequence
// order, as if the run were streaming again. It stops at the first handler
// error.
func Replay(ctx context.Context, driver storage.Driver, runID string, handler sse.Handler) error {
	events, err := driver.Events(ctx, runID)
	if err != nil {
		return err
	}

	for _, ev := range events {
		payload, err := sse.DecodePayload(ev.Payload)
		if err != nil {
			return fmt.Errorf("decoding event %d of run %s: %w", ev.Seq, runID, err)
		}
		if err := handler(ev.Type, payload); err != nil {
			return err
		}
	}
	return nil
}
