package eventstream

import "context"

// Publisher publishes run events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *RunEvent) error
	Close() error
}
