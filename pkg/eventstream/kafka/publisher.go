// Package kafka publishes run events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/switchboard/pkg/eventstream"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	// Brokers is a comma separated list of host:port pairs.
	Brokers string
	Topic   string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

// Publisher writes each run event as one message keyed by run ID, so the
// events of a run stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	var brokers []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return newPublisher(&kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}), nil
}

func newPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish writes event to the topic.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.RunEvent) error {
	if event == nil {
		return eventstream.ErrNilRunEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling run event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Run.ID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing kafka message: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
