package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// FimLibReady is the record published once create_fim_lib finishes building
// (or refreshing) a reach's map library.
type FimLibReady struct {
	ReachID     string    `json:"reach_id"`
	ReachRoot   string    `json:"reach_root"`
	LibraryDir  string    `json:"library_dir"`
	EntryCount  int       `json:"entry_count"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher publishes job-lifecycle notifications. A Publisher must be safe
// for concurrent use by multiple worker goroutines.
type Publisher interface {
	PublishFimLibReady(ctx context.Context, event FimLibReady) error
	Close() error
}

// kafkaPublisher publishes to a single Kafka topic via kafka-go's Writer,
// which handles its own internal batching and leader routing.
type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a Publisher backed by cfg. If cfg has no brokers
// configured, it returns a NoopPublisher instead, since the downstream
// forecasting subscription is an optional notification channel (spec.md
// marks the object store sibling optional; this is the same shape).
func NewPublisher(cfg *Config) Publisher {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return NoopPublisher{}
	}

	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishFimLibReady publishes event keyed by reach ID, so all of a reach's
// map-library updates land on the same partition and are consumed in order.
func (p *kafkaPublisher) PublishFimLibReady(ctx context.Context, event FimLibReady) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal fim_lib.ready event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ReachID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish fim_lib.ready event for reach %q: %w", event.ReachID, err)
	}

	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards every event. Used when Kafka is not configured and
// by tests that don't care about the notification channel.
type NoopPublisher struct{}

// PublishFimLibReady does nothing and never fails.
func (NoopPublisher) PublishFimLibReady(context.Context, FimLibReady) error { return nil }

// Close does nothing and never fails.
func (NoopPublisher) Close() error { return nil }
