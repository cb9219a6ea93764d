package sse

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ErrStreamInterrupted wraps a read error that ended the stream before the
// source reported io.EOF, e.g. a dropped connection.
var ErrStreamInterrupted = errors.New("event stream interrupted")

// State is the lifecycle state of a stream.
type State int

const (
	// StateIdle is a stream whose response has not been confirmed yet.
	StateIdle State = iota

	// StateOpen is a stream that is being read.
	StateOpen

	// StateClosed is a stream whose source is exhausted. No further events
	// are produced.
	StateClosed

	// StateErrored is a stream that could not be opened. The parser never
	// ran.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler receives normalized events. A returned error is logged and does
// not stop the stream.
type Handler func(eventType string, payload Payload) error

// Reader pulls chunks from a source, reassembles lines, and yields
// normalized events one at a time.
//
// ┌──────────────────┐
// │ source io.Reader │  one Read per chunk
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │    LineBuffer    │  complete lines, in order
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Parser      │  event type cursor + normalization
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// A Reader belongs to a single stream and must not be used from more than
// one goroutine at a time. To cancel, cancel the request context that owns
// the source, or have the source report io.EOF once its owner releases it;
// the Reader then closes like any other end of stream.
type Reader struct {
	src    io.Reader
	buf    []byte
	lines  *LineBuffer
	parser *Parser
	queue  []string

	state   State
	done    bool
	readErr error

	logger   *zap.Logger
	observer Observer
}

// NewReader returns a Reader over the body of a successful response. The
// stream starts in StateOpen.
func NewReader(src io.Reader, opts ...Option) *Reader {
	o := newOptions(opts)

	return &Reader{
		src:      src,
		buf:      make([]byte, o.chunkSize),
		lines:    NewLineBuffer(),
		parser:   NewParser(opts...),
		state:    StateOpen,
		logger:   o.logger,
		observer: o.observer,
	}
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	return r.state
}

// Next returns the next normalized event. It blocks until one is available
// or the source is exhausted, in which case it returns nil, nil.
//
// If the source fails with anything other than io.EOF or a cancelled
// context, Next returns an error wrapping ErrStreamInterrupted once, and
// nil, nil afterwards.
func (r *Reader) Next() (*Event, error) {
	for {
		for len(r.queue) > 0 {
			line := r.queue[0]
			r.queue = r.queue[1:]

			if ev, ok := r.parser.ParseLine(line); ok {
				return ev, nil
			}
		}

		if r.done {
			return nil, r.close()
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.queue = append(r.queue, r.lines.Push(r.buf[:n])...)
		}
		if err != nil {
			r.done = true
			r.readErr = err
		}
	}
}

// Dispatch reads the stream to its end, invoking handler for each event in
// order. Handler errors and panics are logged and do not stop the stream.
func (r *Reader) Dispatch(ctx context.Context, handler Handler) error {
	for {
		ev, err := r.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}

		// A cancelled caller stops acting on further events; the stream
		// is treated as closed.
		if ctx.Err() != nil {
			r.done = true
			r.queue = nil
			return r.close()
		}

		r.dispatch(handler, ev)
	}
}

func (r *Reader) dispatch(handler Handler, ev *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.handlerFailed(ev.Type, fmt.Errorf("handler panic: %v", rec))
		}
	}()

	if err := handler(ev.Type, ev.Payload); err != nil {
		r.handlerFailed(ev.Type, err)
	}
}

func (r *Reader) handlerFailed(eventType string, err error) {
	r.logger.Warn("event handler failed",
		zap.String("event_type", eventType),
		zap.Error(err),
	)
	r.observer.HandlerFailed(eventType)
}

// close moves the stream to StateClosed. Only the first call can return an
// error.
func (r *Reader) close() error {
	if r.state == StateClosed {
		return nil
	}
	r.state = StateClosed

	// Every meaningful line ends with a newline; an unterminated tail is
	// dropped rather than parsed.
	if tail := r.lines.Discard(); tail != "" {
		r.logger.Debug("discarding unterminated trailing line", zap.String("tail", tail))
	}

	r.observer.StreamClosed(StateClosed)

	err := r.readErr
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
}

// Consume opens a Reader over src and dispatches every event to handler.
// src must be the body of a response already confirmed successful.
func Consume(ctx context.Context, src io.Reader, handler Handler, opts ...Option) error {
	return NewReader(src, opts...).Dispatch(ctx, handler)
}
