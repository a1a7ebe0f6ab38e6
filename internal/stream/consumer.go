package stream

import (
	"context"
	"fmt"

	"github.com/cafesight/cafesight/internal/config"
)

// Message is one entry read from the event log. ID is the entry's position
// in the log (Redis stream entry id, or Kafka topic-partition-offset) and is
// stable across redeliveries, so fact identity can be derived from it.
type Message struct {
	ID    string
	Value []byte
}

// Consumer reads bounded batches from a consumer group on the event log.
// Fetch blocks up to the configured timeout and returns at most the
// configured batch count. Messages become eligible for redelivery until
// they are passed to Ack; callers must only ack after the batch's facts
// are durably written.
type Consumer interface {
	Fetch(ctx context.Context) ([]Message, error)
	Ack(ctx context.Context, msgs []Message) error
	Close() error
}

// New builds the consumer backend named by the config.
func New(cfg config.StreamConfig) (Consumer, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisConsumer(cfg)
	case "kafka":
		return NewKafkaConsumer(cfg)
	default:
		return nil, fmt.Errorf("unknown stream backend %q", cfg.Backend)
	}
}
