package aggregate

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is the slice of the analytical store the engine needs.
type Store interface {
	Exec(ctx context.Context, query string) error
}

// Engine re-runs every rollup statement over each granularity's lookback
// window. Statements are isolated: one failing is logged and skipped, the
// rest of the run continues. The KPI and unified statements sit last in the
// order because they join the rollups refreshed before them.
type Engine struct {
	store Store
	topN  int

	mu sync.Mutex
}

func NewEngine(store Store, bestSellerTopN int) *Engine {
	return &Engine{store: store, topN: bestSellerTopN}
}

type statement struct {
	name string
	sql  func(Period) string
}

func (e *Engine) statements() []statement {
	return []statement{
		{"sales_summary", salesSummarySQL},
		{"visitor_summary", visitorSummarySQL},
		{"best_sellers", func(p Period) string { return bestSellersSQL(p, e.topN) }},
		{"golden_path", goldenPathSQL},
		{"purchase_golden_path", purchaseGoldenPathSQL},
		{"promotion_summary", promotionSummarySQL},
		{"kpi_summary", kpiSummarySQL},
		{"unified_summary", unifiedSummarySQL},
	}
}

// RunAll refreshes every rollup for every granularity. Always completes;
// failures surface only in the log and in the returned count.
func (e *Engine) RunAll(ctx context.Context) (failed int) {
	log.Info().Msg("Aggregation run started")

	for _, p := range Periods {
		if ctx.Err() != nil {
			log.Warn().Msg("Aggregation run cancelled")
			return failed
		}
		failed += e.runPeriod(ctx, p)
	}

	log.Info().Int("failed_statements", failed).Msg("Aggregation run finished")
	return failed
}

func (e *Engine) runPeriod(ctx context.Context, p Period) (failed int) {
	for _, st := range e.statements() {
		if err := e.store.Exec(ctx, st.sql(p)); err != nil {
			// Isolated: the statement is retried on the next scheduled run
			log.Error().Err(err).
				Str("statement", st.name).
				Str("period", string(p)).
				Msg("Rollup statement failed")
			failed++
			continue
		}
		log.Debug().
			Str("statement", st.name).
			Str("period", string(p)).
			Msg("Rollup statement done")
	}
	return failed
}

// TryRunAll is the scheduler's single-flight entry point. Returns false
// when a run is already in progress.
func (e *Engine) TryRunAll(ctx context.Context) bool {
	if !e.mu.TryLock() {
		log.Warn().Msg("Aggregation run already in progress, skipping")
		return false
	}
	defer e.mu.Unlock()

	e.RunAll(ctx)
	return true
}

// TryStart launches a run in the background for the manual trigger, under
// the same single-flight guard as TryRunAll.
func (e *Engine) TryStart(ctx context.Context) bool {
	if !e.mu.TryLock() {
		log.Warn().Msg("Aggregation run already in progress, skipping")
		return false
	}
	go func() {
		defer e.mu.Unlock()
		e.RunAll(ctx)
	}()
	return true
}
