package storage

// Table DDL, applied idempotently on startup. Fact tables are plain
// MergeTree and append-only; every rollup table is a ReplacingMergeTree
// keyed on its bucket identity so a re-aggregation pass supersedes prior
// rows instead of duplicating them.
var tableSchemas = []struct {
	name  string
	query string
}{
	{
		name: "events",
		query: `
			CREATE TABLE IF NOT EXISTS events (
				event_id UUID,
				user_id String,
				session_id String,
				event_type String,
				event_time DateTime,
				store_id String,
				metadata String,
				promotion_id String,
				duration_seconds UInt32
			) ENGINE = MergeTree()
			PARTITION BY toYYYYMM(event_time)
			ORDER BY (user_id, session_id, event_time)
		`,
	},
	{
		name: "orders",
		query: `
			CREATE TABLE IF NOT EXISTS orders (
				order_id UUID,
				user_id String,
				session_id String,
				store_id String,
				menu_id String,
				menu_name String,
				category String,
				quantity UInt8,
				price_per_item UInt32,
				total_price UInt32,
				status Enum8('paid' = 1, 'canceled' = 2, 'refunded' = 3, 'initiated' = 4),
				ordered_at DateTime,
				updated_at DateTime,
				promotion_id String
			) ENGINE = MergeTree()
			ORDER BY (store_id, ordered_at)
		`,
	},
	{
		name: "sales_summary_by_period",
		query: `
			CREATE TABLE IF NOT EXISTS sales_summary_by_period (
				period_type String,
				period_start Date,
				store_id String,
				total_sales Float64,
				total_orders UInt32,
				avg_order_value Float64,
				unique_customers UInt32,
				total_customers UInt32,
				updated_at DateTime
			) ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY period_type
			ORDER BY (period_start, store_id)
		`,
	},
	{
		name: "visitor_summary_by_period",
		query: `
			CREATE TABLE IF NOT EXISTS visitor_summary_by_period (
				period_type String,
				period_start Date,
				store_id String,
				total_unique_visitors UInt64,
				engaged_visitors UInt64,
				page_views UInt64,
				total_sessions UInt64,
				bounced_sessions UInt64,
				bounce_rate Float32,
				avg_session_duration_seconds Float64,
				updated_at DateTime
			) ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY period_type
			ORDER BY (period_start, store_id)
		`,
	},
	{
		name: "best_selling_menu_items",
		query: `
			CREATE TABLE IF NOT EXISTS best_selling_menu_items (
				period_type String,
				period_start Date,
				store_id String,
				menu_id String,
				menu_name String,
				category String,
				order_count UInt32,
				total_revenue Float64,
				rank UInt8
			) ENGINE = ReplacingMergeTree()
			PARTITION BY period_type
			ORDER BY (period_start, store_id, menu_id)
		`,
	},
	{
		name: "golden_path_stats",
		query: `
			CREATE TABLE IF NOT EXISTS golden_path_stats (
				period_type String,
				period_start Date,
				store_id String,
				path Array(String),
				user_count UInt32,
				total_sessions UInt32
			) ENGINE = ReplacingMergeTree()
			PARTITION BY period_type
			ORDER BY (period_start, store_id, path)
		`,
	},
	{
		name: "purchase_golden_path_stats",
		query: `
			CREATE TABLE IF NOT EXISTS purchase_golden_path_stats (
				period_type String,
				period_start Date,
				store_id String,
				path Array(String),
				purchased_items Array(String),
				user_count UInt32,
				total_sessions UInt32
			) ENGINE = ReplacingMergeTree()
			PARTITION BY period_type
			ORDER BY (period_start, store_id, path)
		`,
	},
	{
		name: "promotion_summary_by_period",
		query: `
			CREATE TABLE IF NOT EXISTS promotion_summary_by_period (
				period_type String,
				period_start Date,
				promotion_id String,
				promotion_name String,
				total_views UInt64,
				total_view_duration_seconds UInt64,
				unique_viewers UInt64,
				total_clicks UInt64,
				unique_clickers UInt64,
				updated_at DateTime
			) ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY toYYYYMM(period_start)
			ORDER BY (period_type, period_start, promotion_id)
		`,
	},
	{
		name: "kpi_summary_by_period",
		query: `
			CREATE TABLE IF NOT EXISTS kpi_summary_by_period (
				period_type String,
				period_start Date,
				store_id String,
				total_unique_visitors UInt64,
				engaged_visitors UInt64,
				bounce_rate Float32,
				unique_customers UInt64,
				total_sales Float64,
				total_orders UInt64,
				conversion_rate Float32,
				revenue_per_visitor Float64,
				updated_at DateTime
			) ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY period_type
			ORDER BY (period_start, store_id)
		`,
	},
	{
		name: "unified_store_summary",
		query: `
			CREATE TABLE IF NOT EXISTS unified_store_summary (
				period_type String,
				period_start Date,
				store_id String,
				total_sales Float64,
				total_orders UInt32,
				avg_order_value Float64,
				unique_customers UInt32,
				top_1_menu_id String,
				top_1_order_count UInt32,
				top_2_menu_id String,
				top_2_order_count UInt32,
				top_3_menu_id String,
				top_3_order_count UInt32,
				top_1_path Array(String),
				top_1_path_users UInt32,
				top_2_path Array(String),
				top_2_path_users UInt32,
				updated_at DateTime
			) ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY period_type
			ORDER BY (period_start, store_id)
		`,
	},
	{
		name: "golden_path_insights",
		query: `
			CREATE TABLE IF NOT EXISTS golden_path_insights (
				period_type String,
				period_start Date,
				store_id String,
				total_sessions UInt32,
				success_sessions UInt32,
				top String,
				top_by_item String,
				updated_at DateTime
			) ENGINE = ReplacingMergeTree(updated_at)
			PARTITION BY period_type
			ORDER BY (period_start, store_id)
		`,
	},
}
