package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/cafesight/cafesight/internal/config"
)

// KafkaConsumer adapts a kafka-go group reader to the batch contract.
// Offsets are committed only through Ack, so an unacked batch is redelivered
// after a rebalance or restart.
type KafkaConsumer struct {
	reader *kafka.Reader
	cfg    config.StreamConfig

	mu      sync.Mutex
	pending map[string]kafka.Message
}

func NewKafkaConsumer(cfg config.StreamConfig) (*KafkaConsumer, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Group,
		MinBytes:    1e3,  // 1KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})

	return &KafkaConsumer{
		reader:  reader,
		cfg:     cfg,
		pending: make(map[string]kafka.Message),
	}, nil
}

func messageID(m kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}

// Fetch blocks for the first message up to the block timeout, then drains
// whatever else is immediately available up to the batch count.
func (c *KafkaConsumer) Fetch(ctx context.Context) ([]Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.BlockTimeout)
	defer cancel()

	var msgs []Message
	for len(msgs) < c.cfg.BatchCount {
		m, err := c.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if ctx.Err() != nil {
				return msgs, ctx.Err()
			}
			return msgs, err
		}

		id := messageID(m)
		c.mu.Lock()
		c.pending[id] = m
		c.mu.Unlock()

		msgs = append(msgs, Message{ID: id, Value: m.Value})
	}
	return msgs, nil
}

func (c *KafkaConsumer) Ack(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	c.mu.Lock()
	kmsgs := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		if km, ok := c.pending[m.ID]; ok {
			kmsgs = append(kmsgs, km)
			delete(c.pending, m.ID)
		}
	}
	c.mu.Unlock()

	return c.reader.CommitMessages(ctx, kmsgs...)
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
