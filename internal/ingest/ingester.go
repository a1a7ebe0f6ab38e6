package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cafesight/cafesight/internal/storage"
	"github.com/cafesight/cafesight/internal/stream"
)

// FactStore is the slice of the analytical store the ingester writes to.
type FactStore interface {
	InsertEvents(ctx context.Context, events []storage.EventRow) error
	InsertOrders(ctx context.Context, orders []storage.OrderRow) error
}

// Ingester drains the event log batch by batch: fetch, parse, write, ack.
// Malformed messages are skipped (and still acked); a store write failure
// leaves the whole batch unacked so the broker redelivers it.
type Ingester struct {
	consumer stream.Consumer
	store    FactStore

	retryDelay time.Duration
}

func New(consumer stream.Consumer, store FactStore) *Ingester {
	return &Ingester{
		consumer:   consumer,
		store:      store,
		retryDelay: 3 * time.Second,
	}
}

// Run consumes until the context is cancelled.
func (i *Ingester) Run(ctx context.Context) {
	log.Info().Msg("Ingester started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Ingester stopped")
			return
		default:
		}

		msgs, err := i.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Ingester stopped")
				return
			}
			log.Error().Err(err).Msg("Failed to fetch messages")
			i.sleep(ctx)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		if err := i.processBatch(ctx, msgs); err != nil {
			// No acks: the broker will redeliver the whole batch
			log.Error().Err(err).Int("count", len(msgs)).Msg("Batch write failed, leaving batch unacked")
			i.sleep(ctx)
			continue
		}

		if err := i.consumer.Ack(ctx, msgs); err != nil {
			log.Error().Err(err).Int("count", len(msgs)).Msg("Failed to ack batch")
		}
	}
}

// processBatch parses every message and writes the batch's facts. Returns an
// error only on write failure; parse failures are logged and dropped.
func (i *Ingester) processBatch(ctx context.Context, msgs []stream.Message) error {
	events := make([]storage.EventRow, 0, len(msgs))
	var orders []storage.OrderRow

	for _, msg := range msgs {
		event, lines, err := Parse(msg)
		if err != nil {
			log.Warn().Err(err).Str("id", msg.ID).Msg("Skipping malformed message")
			continue
		}
		events = append(events, event)
		orders = append(orders, lines...)
	}

	if err := i.store.InsertEvents(ctx, events); err != nil {
		return err
	}
	if err := i.store.InsertOrders(ctx, orders); err != nil {
		return err
	}

	log.Info().
		Int("messages", len(msgs)).
		Int("events", len(events)).
		Int("order_lines", len(orders)).
		Msg("Batch written")
	return nil
}

func (i *Ingester) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(i.retryDelay):
	}
}
