// Package metrics exposes prometheus counters for event streams.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/papercomputeco/switchboard/pkg/sse"
)

// knownTypes bounds the cardinality of the type label. Anything else is
// counted as "other".
var knownTypes = map[string]bool{
	"message":      true,
	"thinking":     true,
	"action":       true,
	"action_input": true,
	"observation":  true,
	"final_answer": true,
	"error":        true,

	"workflow_started":   true,
	"step_progress":      true,
	"agent_starting":     true,
	"agent_completed":    true,
	"agent_failed":       true,
	"workflow_completed": true,
	"workflow_failed":    true,
}

// Collector counts stream activity. It implements sse.Observer.
type Collector struct {
	events          *prometheus.CounterVec
	framesSkipped   *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	streams         *prometheus.CounterVec
	openFailures    *prometheus.CounterVec
}

var _ sse.Observer = (*Collector)(nil)

// New registers the stream counters with reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_sse_events_total",
			Help: "Normalized events emitted, grouped by event type",
		}, []string{"type"}),
		framesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_sse_frames_skipped_total",
			Help: "Data lines dropped without producing an event, grouped by reason",
		}, []string{"reason"}),
		handlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_sse_handler_failures_total",
			Help: "Event handlers that returned an error or panicked, grouped by event type",
		}, []string{"type"}),
		streams: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_sse_streams_total",
			Help: "Streams that reached a terminal state, grouped by state",
		}, []string{"state"}),
		openFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchboard_stream_open_failures_total",
			Help: "Execution streams that failed to open, grouped by kind (status or transport)",
		}, []string{"kind"}),
	}
}

func typeLabel(eventType string) string {
	if knownTypes[eventType] {
		return eventType
	}
	return "other"
}

func (c *Collector) EventEmitted(eventType string) {
	c.events.WithLabelValues(typeLabel(eventType)).Inc()
}

func (c *Collector) FrameSkipped(reason string) {
	c.framesSkipped.WithLabelValues(reason).Inc()
}

func (c *Collector) HandlerFailed(eventType string) {
	c.handlerFailures.WithLabelValues(typeLabel(eventType)).Inc()
}

func (c *Collector) StreamClosed(state sse.State) {
	c.streams.WithLabelValues(state.String()).Inc()
}

// OpenFailed counts a stream that never opened. It also records the
// stream as errored.
func (c *Collector) OpenFailed(kind string) {
	c.openFailures.WithLabelValues(kind).Inc()
	c.streams.WithLabelValues(sse.StateErrored.String()).Inc()
}
