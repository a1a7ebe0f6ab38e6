package aggregate

import "fmt"

// Rollup statements. All of them are INSERT ... SELECT into a
// ReplacingMergeTree keyed on the bucket identity, so re-running any
// statement over the same window replaces rather than duplicates.

func salesSummarySQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO sales_summary_by_period
		SELECT
			'%s' AS period_type,
			%s(ordered_at) AS period_start,
			store_id,
			SUM(total_price) AS total_sales,
			COUNT(*) AS total_orders,
			AVG(total_price) AS avg_order_value,
			COUNT(DISTINCT user_id) AS unique_customers,
			COUNT(DISTINCT session_id) AS total_customers,
			now() AS updated_at
		FROM orders
		WHERE ordered_at >= today() - INTERVAL %d DAY
		GROUP BY store_id, period_start
	`, p, p.DateFunc(), p.LookbackDays())
}

func visitorSummarySQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO visitor_summary_by_period
		WITH sessions_summary AS (
			SELECT
				store_id,
				user_id,
				session_id,
				min(event_time) AS session_start_at,
				countIf(event_type = 'viewScreen') AS page_views_in_session,
				date_diff('second', min(event_time), max(event_time)) AS session_duration_seconds
			FROM events
			WHERE event_time >= today() - INTERVAL %d DAY
			GROUP BY store_id, user_id, session_id
		)
		SELECT
			'%s' AS period_type,
			%s(session_start_at) AS period_start,
			store_id,
			count(DISTINCT user_id) AS total_unique_visitors,
			count(DISTINCT if(page_views_in_session > 1, user_id, NULL)) AS engaged_visitors,
			sum(page_views_in_session) AS page_views,
			count(DISTINCT session_id) AS total_sessions,
			countIf(page_views_in_session = 1) AS bounced_sessions,
			if(total_sessions > 0, round(bounced_sessions / total_sessions, 4), 0) AS bounce_rate,
			avg(session_duration_seconds) AS avg_session_duration_seconds,
			now() AS updated_at
		FROM sessions_summary
		GROUP BY store_id, period_start
	`, p.LookbackDays(), p, p.DateFunc())
}

// bestSellersSQL keeps the top N menu items per bucket, ranked by quantity
// with revenue as the tie-break.
func bestSellersSQL(p Period, topN int) string {
	return fmt.Sprintf(`
		INSERT INTO best_selling_menu_items
		SELECT *
		FROM (
			SELECT
				'%s' AS period_type,
				%s(ordered_at) AS period_start,
				store_id,
				menu_id,
				any(menu_name) AS menu_name,
				any(category) AS category,
				SUM(quantity) AS order_count,
				SUM(total_price) AS total_revenue,
				row_number() OVER (
					PARTITION BY store_id, %s(ordered_at)
					ORDER BY SUM(quantity) DESC, SUM(total_price) DESC
				) AS rank
			FROM orders
			WHERE ordered_at >= today() - INTERVAL %d DAY
			GROUP BY store_id, menu_id, period_start
		)
		WHERE rank <= %d
	`, p, p.DateFunc(), p.DateFunc(), p.LookbackDays(), topN)
}

func goldenPathSQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO golden_path_stats
		WITH session_paths AS (
			SELECT
				session_id,
				store_id,
				%[2]s(min(event_time)) AS period_start,
				groupArray(JSONExtractString(metadata, 'screenName')) AS path
			FROM (
				SELECT session_id, store_id, event_time, metadata
				FROM events
				WHERE event_type = 'viewScreen'
				  AND event_time >= today() - INTERVAL %[3]d DAY
				ORDER BY session_id, event_time ASC
			)
			GROUP BY session_id, store_id
		),
		period_totals AS (
			SELECT period_start, store_id, count(*) AS total_sessions
			FROM session_paths
			GROUP BY period_start, store_id
		)
		SELECT
			'%[1]s' AS period_type,
			pc.period_start,
			pc.store_id,
			pc.path,
			pc.user_count,
			pt.total_sessions
		FROM (
			SELECT period_start, store_id, path, count(session_id) AS user_count
			FROM session_paths
			GROUP BY period_start, store_id, path
		) AS pc
		LEFT JOIN period_totals AS pt
			ON pc.period_start = pt.period_start AND pc.store_id = pt.store_id
		ORDER BY user_count DESC
		LIMIT 100 BY pc.period_start, pc.store_id
	`, p, p.DateFunc(), p.LookbackDays())
}

// purchaseGoldenPathSQL mirrors goldenPathSQL restricted to sessions that
// ended in a paid order, and carries the distinct purchased item names seen
// across each path's sessions.
func purchaseGoldenPathSQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO purchase_golden_path_stats
		WITH paid_sessions AS (
			SELECT DISTINCT session_id FROM orders WHERE status = 'paid'
		),
		session_paths AS (
			SELECT
				session_id,
				store_id,
				%[2]s(min(event_time)) AS period_start,
				groupArray(JSONExtractString(metadata, 'screenName')) AS path
			FROM (
				SELECT session_id, store_id, event_time, metadata
				FROM events
				WHERE event_type = 'viewScreen'
				  AND event_time >= today() - INTERVAL %[3]d DAY
				  AND session_id IN (SELECT session_id FROM paid_sessions)
				ORDER BY session_id, event_time ASC
			)
			GROUP BY session_id, store_id
		),
		session_items AS (
			SELECT session_id, groupUniqArray(menu_name) AS purchased_items
			FROM orders
			WHERE status = 'paid'
			  AND ordered_at >= today() - INTERVAL %[3]d DAY
			GROUP BY session_id
		),
		period_totals AS (
			SELECT period_start, store_id, count(*) AS total_sessions
			FROM session_paths
			GROUP BY period_start, store_id
		)
		SELECT
			'%[1]s' AS period_type,
			pc.period_start,
			pc.store_id,
			pc.path,
			pc.purchased_items,
			pc.user_count,
			pt.total_sessions
		FROM (
			SELECT
				sp.period_start,
				sp.store_id,
				sp.path,
				arrayDistinct(arrayFlatten(groupArray(si.purchased_items))) AS purchased_items,
				count(sp.session_id) AS user_count
			FROM session_paths AS sp
			LEFT JOIN session_items AS si ON sp.session_id = si.session_id
			GROUP BY sp.period_start, sp.store_id, sp.path
		) AS pc
		LEFT JOIN period_totals AS pt
			ON pc.period_start = pt.period_start AND pc.store_id = pt.store_id
		ORDER BY user_count DESC
		LIMIT 100 BY pc.period_start, pc.store_id
	`, p, p.DateFunc(), p.LookbackDays())
}

func promotionSummarySQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO promotion_summary_by_period
		WITH prepared_events AS (
			SELECT
				event_time,
				promotion_id,
				user_id,
				duration_seconds,
				if(event_type = 'viewScreenDuration',
					splitByChar('/', JSONExtractString(metadata, 'screenName'))[-1],
					JSONExtractString(metadata, 'promotionName')
				) AS promotion_name,
				event_type = 'viewScreenDuration' AS is_view,
				(event_type = 'clickInteraction' AND JSONExtractString(metadata, 'interactionType') = 'promotionCard') AS is_click
			FROM events
			WHERE event_time >= today() - INTERVAL %[3]d DAY
			  AND (
				event_type = 'viewScreenDuration'
				OR (event_type = 'clickInteraction' AND JSONExtractString(metadata, 'interactionType') = 'promotionCard')
			  )
			  AND promotion_id != ''
		)
		SELECT
			'%[1]s' AS period_type,
			%[2]s(event_time) AS period_start,
			promotion_id,
			any(promotion_name) AS promotion_name,
			countIf(is_view) AS total_views,
			sumIf(duration_seconds, is_view) AS total_view_duration_seconds,
			uniqExactIf(user_id, is_view) AS unique_viewers,
			countIf(is_click) AS total_clicks,
			uniqExactIf(user_id, is_click) AS unique_clickers,
			now() AS updated_at
		FROM prepared_events
		WHERE promotion_name != ''
		GROUP BY period_start, promotion_id
	`, p, p.DateFunc(), p.LookbackDays())
}

// kpiSummarySQL joins the sales and visitor rollups; it must run after both
// have been refreshed for the window. Missing sales rows default to zero.
func kpiSummarySQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO kpi_summary_by_period
		SELECT
			v.period_type,
			v.period_start,
			v.store_id,
			v.total_unique_visitors,
			v.engaged_visitors,
			v.bounce_rate,
			COALESCE(s.unique_customers, 0) AS unique_customers,
			COALESCE(s.total_sales, 0) AS total_sales,
			COALESCE(s.total_orders, 0) AS total_orders,
			if(v.total_unique_visitors > 0, round(COALESCE(s.unique_customers, 0) / v.total_unique_visitors * 100, 2), 0) AS conversion_rate,
			if(v.total_unique_visitors > 0, round(COALESCE(s.total_sales, 0) / v.total_unique_visitors, 2), 0) AS revenue_per_visitor,
			now() AS updated_at
		FROM (SELECT * FROM visitor_summary_by_period FINAL) AS v
		LEFT JOIN (SELECT * FROM sales_summary_by_period FINAL) AS s
			ON v.period_start = s.period_start
			AND v.store_id = s.store_id
			AND v.period_type = s.period_type
		WHERE v.period_type = '%s'
		  AND v.period_start >= today() - INTERVAL %d DAY
	`, p, p.LookbackDays())
}

// unifiedSummarySQL pivots the top-3 best sellers and top-2 golden paths
// into fixed columns next to the sales summary; it must run after all three
// source rollups.
func unifiedSummarySQL(p Period) string {
	return fmt.Sprintf(`
		INSERT INTO unified_store_summary (
			period_type, period_start, store_id, total_sales, total_orders, avg_order_value, unique_customers,
			top_1_menu_id, top_1_order_count, top_2_menu_id, top_2_order_count, top_3_menu_id, top_3_order_count,
			top_1_path, top_1_path_users, top_2_path, top_2_path_users, updated_at
		)
		WITH best_menus_pivot AS (
			SELECT
				period_type, period_start, store_id,
				groupArray(menu_id)[1] AS top_1_menu_id, groupArray(order_count)[1] AS top_1_order_count,
				groupArray(menu_id)[2] AS top_2_menu_id, groupArray(order_count)[2] AS top_2_order_count,
				groupArray(menu_id)[3] AS top_3_menu_id, groupArray(order_count)[3] AS top_3_order_count
			FROM (
				SELECT * FROM (SELECT * FROM best_selling_menu_items FINAL)
				WHERE period_type = '%[1]s' AND period_start >= today() - INTERVAL %[2]d DAY
				ORDER BY period_type, period_start, store_id, rank
			)
			GROUP BY period_type, period_start, store_id
		),
		golden_paths_pivot AS (
			SELECT
				period_type, period_start, store_id,
				groupArray(path)[1] AS top_1_path, groupArray(user_count)[1] AS top_1_path_users,
				groupArray(path)[2] AS top_2_path, groupArray(user_count)[2] AS top_2_path_users
			FROM (
				SELECT * FROM (SELECT * FROM golden_path_stats FINAL)
				WHERE period_type = '%[1]s' AND period_start >= today() - INTERVAL %[2]d DAY
				ORDER BY period_type, period_start, store_id, user_count DESC
			)
			GROUP BY period_type, period_start, store_id
		)
		SELECT
			s.period_type, s.period_start, s.store_id, s.total_sales, s.total_orders, s.avg_order_value, s.unique_customers,
			m.top_1_menu_id, m.top_1_order_count, m.top_2_menu_id, m.top_2_order_count, m.top_3_menu_id, m.top_3_order_count,
			p.top_1_path, p.top_1_path_users, p.top_2_path, p.top_2_path_users, now() AS updated_at
		FROM (SELECT * FROM sales_summary_by_period FINAL) AS s
		LEFT JOIN best_menus_pivot AS m
			ON s.period_type = m.period_type AND s.period_start = m.period_start AND s.store_id = m.store_id
		LEFT JOIN golden_paths_pivot AS p
			ON s.period_type = p.period_type AND s.period_start = p.period_start AND s.store_id = p.store_id
		WHERE s.period_type = '%[1]s' AND s.period_start >= today() - INTERVAL %[2]d DAY
	`, p, p.LookbackDays())
}
