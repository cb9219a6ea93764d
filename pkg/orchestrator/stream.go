package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/papercomputeco/switchboard/pkg/sse"
)

// Stream is an execution stream whose response has been confirmed
// successful.
type Stream struct {
	body   *releasableBody
	reader *sse.Reader
}

func newStream(body io.ReadCloser, opts ...sse.Option) *Stream {
	rb := &releasableBody{ReadCloser: body}
	return &Stream{
		body:   rb,
		reader: sse.NewReader(rb, opts...),
	}
}

// Next returns the next normalized event, or nil, nil once the stream has
// closed.
func (s *Stream) Next() (*sse.Event, error) {
	return s.reader.Next()
}

// Dispatch delivers every remaining event to handler.
func (s *Stream) Dispatch(ctx context.Context, handler sse.Handler) error {
	return s.reader.Dispatch(ctx, handler)
}

// State returns the stream's lifecycle state.
func (s *Stream) State() sse.State {
	return s.reader.State()
}

// Close releases the connection. Closing mid-stream ends it like a normal
// end of stream: a blocked or later Next returns nil, nil.
func (s *Stream) Close() error {
	return s.body.Close()
}

// releasableBody turns the read error caused by a caller's Close into
// io.EOF.
type releasableBody struct {
	io.ReadCloser
	released atomic.Bool
}

func (b *releasableBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && b.released.Load() {
		return n, io.EOF
	}
	return n, err
}

func (b *releasableBody) Close() error {
	b.released.Store(true)
	return b.ReadCloser.Close()
}

// ErrorMessage returns the message carried to handlers for a failed open:
// the backend's message for a StatusError, the error text otherwise.
func ErrorMessage(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message
	}
	return err.Error()
}
