// Package recorder persists and republishes the normalized events of a run
// through an asynchronous worker pool.
//
// The pool decouples storage and publishing from the stream's read loop so
// a slow database or broker never delays rendering.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/eventstream"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one normalized event of one run.
type Job struct {
	Run        *storage.Run
	Seq        int64
	Type       string
	Payload    json.RawMessage
	RecordedAt time.Time
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for transcripts.
	Driver storage.Driver

	// Publisher is the optional event stream publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's buffered job channel
	// (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool records run events asynchronously via a worker pool. Every event of
// a run is handled by the same worker, so a run's events are stored and
// published in sequence order.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	dropped atomic.Int64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c == nil || c.Driver == nil {
		return nil, errors.New("recorder requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(i)
	}

	return wp, nil
}

// Begin creates and stores a new run. The run must exist before any of its
// events are enqueued.
func (p *Pool) Begin(ctx context.Context, kind storage.RunKind, targetID, input string) (*storage.Run, error) {
	run := &storage.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		TargetID:  targetID,
		Input:     input,
		StartedAt: time.Now().UTC(),
	}

	if err := p.config.Driver.PutRun(ctx, run); err != nil {
		return nil, fmt.Errorf("storing run: %w", err)
	}

	p.logger.Debug("run started",
		zap.String("run_id", run.ID),
		zap.String("kind", string(run.Kind)),
		zap.String("target_id", run.TargetID),
	)
	return run, nil
}

// Handler returns an sse.Handler that records every event it receives as
// part of run, numbering them from zero in arrival order. A full queue
// drops the event and reports it as a handler error.
func (p *Pool) Handler(run *storage.Run) sse.Handler {
	var seq atomic.Int64
	seq.Store(-1)

	return func(eventType string, payload sse.Payload) error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		job := Job{
			Run:        run,
			Seq:        seq.Add(1),
			Type:       eventType,
			Payload:    raw,
			RecordedAt: time.Now().UTC(),
		}

		if !p.Enqueue(job) {
			return fmt.Errorf("recorder queue full, dropped event %d of run %s", job.Seq, run.ID)
		}
		return nil
	}
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("job not queued, pool closed",
			zap.String("run_id", job.Run.ID),
			zap.Int64("seq", job.Seq),
		)
		return false
	}

	select {
	case p.queues[p.shard(job.Run.ID)] <- job:
		p.logger.Debug("job queued",
			zap.String("run_id", job.Run.ID),
			zap.Int64("seq", job.Seq),
			zap.String("type", job.Type),
		)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("run_id", job.Run.ID),
			zap.Int64("seq", job.Seq),
			zap.String("type", job.Type),
		)
		return false
	}
}

// Dropped returns how many jobs have been dropped so far.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after every stream has closed.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
		p.mu.Unlock()

		p.wg.Wait()
	})
}

func (p *Pool) shard(runID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queues[id] {
		p.processJob(job)
	}

	p.logger.Debug("recorder worker stopped", zap.Uint("worker_id", id))
}

// processJob stores the event and then publishes it. A storage failure
// skips publishing so consumers never see events missing from history.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	err := p.config.Driver.AppendEvent(ctx, &storage.RecordedEvent{
		RunID:      job.Run.ID,
		Seq:        job.Seq,
		Type:       job.Type,
		Payload:    job.Payload,
		RecordedAt: job.RecordedAt,
	})
	if err != nil {
		p.logger.Error("async event storage failed",
			zap.String("run_id", job.Run.ID),
			zap.Int64("seq", job.Seq),
			zap.Error(err),
		)
		return
	}

	if p.config.Publisher == nil {
		return
	}

	ref := eventstream.RunRef{
		ID:       job.Run.ID,
		Kind:     string(job.Run.Kind),
		TargetID: job.Run.TargetID,
	}
	if err := p.config.Publisher.Publish(ctx, eventstream.NewRunEvent(ref, job.Seq, job.Type, job.Payload)); err != nil {
		p.logger.Warn("failed to publish run event",
			zap.String("run_id", job.Run.ID),
			zap.Int64("seq", job.Seq),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("run event recorded",
		zap.String("run_id", job.Run.ID),
		zap.Int64("seq", job.Seq),
		zap.String("type", job.Type),
	)
}
