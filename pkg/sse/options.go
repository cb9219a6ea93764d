package sse

import "go.uber.org/zap"

const defaultChunkSize = 32 * 1024

// Reasons reported to Observer.FrameSkipped.
const (
	SkipConnectNotice = "connect_notice"
	SkipNonJSON       = "non_json"
	SkipInvalidJSON   = "invalid_json"
)

// Observer receives counters from a stream's parse loop. Implementations
// must be cheap; they run inline on the stream's goroutine.
type Observer interface {
	EventEmitted(eventType string)
	FrameSkipped(reason string)
	HandlerFailed(eventType string)
	StreamClosed(state State)
}

type nopObserver struct{}

func (nopObserver) EventEmitted(string)  {}
func (nopObserver) FrameSkipped(string)  {}
func (nopObserver) HandlerFailed(string) {}
func (nopObserver) StreamClosed(State)   {}

// Option configures a Parser or Reader.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	observer  Observer
	chunkSize int
}

func newOptions(opts []Option) options {
	o := options{
		logger:    zap.NewNop(),
		observer:  nopObserver{},
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used to trace skipped frames and handler
// failures. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver attaches an Observer to the stream.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithChunkSize sets the size of each read from the source. Defaults to 32KiB.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}
