package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/cafesight/cafesight/internal/config"
)

const (
	// backlogID reads entries already delivered to this consumer but never
	// acked; newID reads entries never delivered to anyone.
	backlogID = "0"
	newID     = ">"
)

// streamClient is the slice of the Redis client the consumer uses.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
	Close() error
}

// RedisConsumer reads from a Redis Streams consumer group. Producers write
// each envelope as a single "data" field; entries stay pending until acked.
// Redelivery is explicit in Redis Streams, so Fetch drains this consumer's
// own pending backlog before asking for new entries, and periodically
// claims entries stuck pending on a dead sibling.
type RedisConsumer struct {
	rdb streamClient
	cfg config.StreamConfig

	backlogDone bool
	lastClaim   time.Time
}

func NewRedisConsumer(cfg config.StreamConfig) (*RedisConsumer, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	c := &RedisConsumer{rdb: rdb, cfg: cfg}
	if err := c.ensureGroup(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.cfg.Redis.Stream, c.cfg.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	if err == nil {
		log.Info().
			Str("stream", c.cfg.Redis.Stream).
			Str("group", c.cfg.Group).
			Msg("Consumer group created")
	}
	return nil
}

func (c *RedisConsumer) Fetch(ctx context.Context) ([]Message, error) {
	// A batch left unacked by a failed write must come back before any new
	// entries, otherwise it would sit pending forever.
	if !c.backlogDone {
		msgs, err := c.read(ctx, backlogID)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}
		c.backlogDone = true
	}

	// Consumer names are per-process, so entries pending on a crashed
	// sibling (or a previous incarnation of this worker) are only
	// reachable by claiming them.
	if time.Since(c.lastClaim) >= c.cfg.Redis.ClaimMinIdle {
		c.lastClaim = time.Now()
		msgs, err := c.claimStale(ctx)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}
	}

	return c.read(ctx, newID)
}

func (c *RedisConsumer) read(ctx context.Context, from string) ([]Message, error) {
	block := c.cfg.BlockTimeout
	if from != newID {
		// Backlog reads resolve immediately
		block = -1
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Redis.Stream, from},
		Count:    int64(c.cfg.BatchCount),
		Block:    block,
	}).Result()
	if err != nil {
		// No entries within the block timeout
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entries []redis.XMessage
	for _, stream := range res {
		entries = append(entries, stream.Messages...)
	}
	msgs, malformed := decodeEntries(entries)
	c.ackMalformed(ctx, malformed)
	return msgs, nil
}

func (c *RedisConsumer) claimStale(ctx context.Context) ([]Message, error) {
	entries, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Redis.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.Redis.ClaimMinIdle,
		Start:    "0-0",
		Count:    int64(c.cfg.BatchCount),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		log.Info().Int("count", len(entries)).Msg("Claimed stale pending entries")
	}

	msgs, malformed := decodeEntries(entries)
	c.ackMalformed(ctx, malformed)
	return msgs, nil
}

// decodeEntries extracts the envelope payload from each entry's "data"
// field. Entries without one are returned separately so the caller can ack
// them away instead of redelivering them forever.
func decodeEntries(entries []redis.XMessage) (msgs []Message, malformed []string) {
	for _, entry := range entries {
		data, ok := entry.Values["data"].(string)
		if !ok {
			malformed = append(malformed, entry.ID)
			continue
		}
		msgs = append(msgs, Message{ID: entry.ID, Value: []byte(data)})
	}
	return msgs, malformed
}

func (c *RedisConsumer) ackMalformed(ctx context.Context, ids []string) {
	for _, id := range ids {
		log.Warn().Str("id", id).Msg("Stream entry without data field, skipping")
		c.rdb.XAck(ctx, c.cfg.Redis.Stream, c.cfg.Group, id)
	}
}

// Ack removes the batch from the pending list and deletes the entries. Ack
// is all-or-nothing per batch: a failed write means the caller never acks,
// leaving every entry pending for redelivery. Only acked entries are ever
// deleted; a blanket trim could evict entries still pending on a sibling.
func (c *RedisConsumer) Ack(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	if err := c.rdb.XAck(ctx, c.cfg.Redis.Stream, c.cfg.Group, ids...).Err(); err != nil {
		return err
	}

	// Housekeeping only: acked entries are dead weight in the stream
	if err := c.rdb.XDel(ctx, c.cfg.Redis.Stream, ids...).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to delete acked entries")
	}
	return nil
}

func (c *RedisConsumer) Close() error {
	return c.rdb.Close()
}
