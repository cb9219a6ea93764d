// Package redis publishes run events onto a Redis stream.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/switchboard/pkg/eventstream"
)

// streamClient is the subset of redis.UniversalClient the publisher needs.
type streamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Close() error
}

// Config configures the Redis publisher.
type Config struct {
	Addr   string
	Stream string

	// MaxLen caps the stream length (approximate trimming). Zero keeps
	// everything.
	MaxLen int64
}

// Publisher appends each run event to a Redis stream.
type Publisher struct {
	client streamClient
	stream string
	maxLen int64
}

// NewPublisher connects to Redis and returns a publisher.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis publisher requires an address")
	}
	if cfg.Stream == "" {
		return nil, errors.New("redis publisher requires a stream name")
	}

	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newPublisher(client, cfg.Stream, cfg.MaxLen), nil
}

func newPublisher(client streamClient, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends event to the stream.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.RunEvent) error {
	if event == nil {
		return eventstream.ErrNilRunEvent
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling run event: %w", err)
	}

	args := &goredis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: map[string]any{
			"run_id": event.Run.ID,
			"type":   event.Type,
			"data":   data,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
