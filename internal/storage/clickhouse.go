package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cafesight/cafesight/internal/config"
)

type ClickHouse struct {
	conn driver.Conn
}

// EventRow represents a row in the events table
type EventRow struct {
	EventID         uuid.UUID
	UserID          string
	SessionID       string
	EventType       string
	EventTime       time.Time
	StoreID         string
	Metadata        string
	PromotionID     string
	DurationSeconds uint32
}

// OrderRow represents one line item in the orders table. Lines created from
// a single order-creation event share one OrderID.
type OrderRow struct {
	OrderID      uuid.UUID
	UserID       string
	SessionID    string
	StoreID      string
	MenuID       string
	MenuName     string
	Category     string
	Quantity     uint8
	PricePerItem uint32
	TotalPrice   uint32
	Status       string
	OrderedAt    time.Time
	UpdatedAt    time.Time
	PromotionID  string
}

// PathRow is one session's navigation path from the purchase golden-path
// rollup, the mining engine's input.
type PathRow struct {
	PeriodType     string
	PeriodStart    time.Time
	StoreID        string
	Path           []string
	PurchasedItems []string
	UserCount      uint32
	TotalSessions  uint32
}

// InsightRow is one mined golden-path bucket; Top and TopByItem are JSON.
type InsightRow struct {
	PeriodType      string
	PeriodStart     time.Time
	StoreID         string
	TotalSessions   uint32
	SuccessSessions uint32
	Top             string
	TopByItem       string
	UpdatedAt       time.Time
}

func New(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		DialTimeout:  5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

// EnsureTables creates every fact and rollup table that does not exist yet.
func (c *ClickHouse) EnsureTables(ctx context.Context) error {
	for _, schema := range tableSchemas {
		if err := c.conn.Exec(ctx, schema.query); err != nil {
			return fmt.Errorf("create table %s: %w", schema.name, err)
		}
		log.Debug().Str("table", schema.name).Msg("Table ready")
	}
	return nil
}

func (c *ClickHouse) InsertEvents(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO events (
			event_id, user_id, session_id, event_type, event_time,
			store_id, metadata, promotion_id, duration_seconds
		)
	`)
	if err != nil {
		return err
	}

	for _, e := range events {
		err := batch.Append(
			e.EventID, e.UserID, e.SessionID, e.EventType, e.EventTime,
			e.StoreID, e.Metadata, e.PromotionID, e.DurationSeconds,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) InsertOrders(ctx context.Context, orders []OrderRow) error {
	if len(orders) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO orders (
			order_id, user_id, session_id, store_id,
			menu_id, menu_name, category,
			quantity, price_per_item, total_price,
			status, ordered_at, updated_at, promotion_id
		)
	`)
	if err != nil {
		return err
	}

	for _, o := range orders {
		err := batch.Append(
			o.OrderID, o.UserID, o.SessionID, o.StoreID,
			o.MenuID, o.MenuName, o.Category,
			o.Quantity, o.PricePerItem, o.TotalPrice,
			o.Status, o.OrderedAt, o.UpdatedAt, o.PromotionID,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// Exec runs one statement, used by the aggregation engine for its
// INSERT ... SELECT rollups.
func (c *ClickHouse) Exec(ctx context.Context, query string) error {
	return c.conn.Exec(ctx, query)
}

// QueryPurchasePaths reads the purchase golden-path rollup for one
// granularity over its lookback window.
func (c *ClickHouse) QueryPurchasePaths(ctx context.Context, periodType string, since time.Time) ([]PathRow, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT period_type, period_start, store_id, path, purchased_items, user_count, total_sessions
		FROM purchase_golden_path_stats FINAL
		WHERE period_type = ? AND period_start >= ?
	`, periodType, since)
	if err != nil {
		return nil, fmt.Errorf("query purchase paths: %w", err)
	}
	defer rows.Close()

	var out []PathRow
	for rows.Next() {
		var r PathRow
		if err := rows.Scan(&r.PeriodType, &r.PeriodStart, &r.StoreID, &r.Path, &r.PurchasedItems, &r.UserCount, &r.TotalSessions); err != nil {
			return nil, fmt.Errorf("scan purchase path row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *ClickHouse) InsertInsights(ctx context.Context, insights []InsightRow) error {
	if len(insights) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO golden_path_insights (
			period_type, period_start, store_id,
			total_sessions, success_sessions,
			top, top_by_item, updated_at
		)
	`)
	if err != nil {
		return err
	}

	for _, i := range insights {
		err := batch.Append(
			i.PeriodType, i.PeriodStart, i.StoreID,
			i.TotalSessions, i.SuccessSessions,
			i.Top, i.TopByItem, i.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
