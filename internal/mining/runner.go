package mining

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cafesight/cafesight/internal/aggregate"
	"github.com/cafesight/cafesight/internal/config"
	"github.com/cafesight/cafesight/internal/goldenpath"
	"github.com/cafesight/cafesight/internal/storage"
)

// PathStore is the slice of the analytical store the runner needs.
type PathStore interface {
	QueryPurchasePaths(ctx context.Context, periodType string, since time.Time) ([]storage.PathRow, error)
	InsertInsights(ctx context.Context, insights []storage.InsightRow) error
}

// Runner drives the golden-path engine over every bucket of every
// granularity and persists the results. Buckets are independent, so they
// run on a bounded worker pool; cancellation is honored at bucket
// boundaries.
type Runner struct {
	store   PathStore
	opts    goldenpath.Options
	workers int
	now     func() time.Time

	mu sync.Mutex
}

func NewRunner(store PathStore, cfg config.MiningConfig) *Runner {
	return &Runner{
		store:   store,
		opts:    optionsFromConfig(cfg),
		workers: cfg.Workers,
		now:     time.Now,
	}
}

// optionsFromConfig layers the config file's overrides onto the engine
// defaults. Zero values and nil booleans leave the default in place.
func optionsFromConfig(cfg config.MiningConfig) goldenpath.Options {
	opts := goldenpath.DefaultOptions()

	if len(cfg.SuccessEndpoints) > 0 {
		opts.SuccessEndpoints = cfg.SuccessEndpoints
	}
	if cfg.NgramMax > 0 {
		opts.NgramMax = cfg.NgramMax
	}
	if cfg.MinNgramLength > 0 {
		opts.MinNgramLength = cfg.MinNgramLength
	}
	if cfg.MinSupport > 0 {
		opts.MinSupport = cfg.MinSupport
	}
	if cfg.MinSupportByItem > 0 {
		opts.MinSupportByItem = cfg.MinSupportByItem
	}
	if cfg.MinDistinctPages > 0 {
		opts.MinDistinctPages = cfg.MinDistinctPages
	}
	if len(cfg.RequireContainsAny) > 0 {
		opts.RequireContainsAny = cfg.RequireContainsAny
	}
	if len(cfg.DisallowOnlyFrom) > 0 {
		opts.DisallowOnlyFrom = cfg.DisallowOnlyFrom
	}
	if cfg.TopK > 0 {
		opts.TopK = cfg.TopK
	}
	if cfg.ByPurchasedTop > 0 {
		opts.ByPurchasedTop = cfg.ByPurchasedTop
	}
	if cfg.OnePathPerItem != nil {
		opts.OnePathPerItem = *cfg.OnePathPerItem
	}
	if cfg.RequireMenuDetail != nil {
		opts.RequireMenuDetailInItemPath = *cfg.RequireMenuDetail
	}
	if cfg.EnableRelaxFallback != nil {
		opts.EnableRelaxFallback = *cfg.EnableRelaxFallback
	}
	if cfg.DedupeConsecutive != nil {
		opts.DedupeConsecutive = *cfg.DedupeConsecutive
	}
	if cfg.AssumeAllSuccessful != nil {
		opts.AssumeAllSuccessful = *cfg.AssumeAllSuccessful
	}
	if cfg.SuccessRateAlwaysOne != nil {
		opts.SuccessRateAlwaysOne = *cfg.SuccessRateAlwaysOne
	}
	return opts
}

type bucketKey struct {
	periodType  string
	periodStart time.Time
	storeID     string
}

// RunAll mines every granularity's lookback window. Periods run
// sequentially, buckets within a period in parallel. Failures are logged
// and counted, never fatal to the run.
func (r *Runner) RunAll(ctx context.Context) (failed int) {
	log.Info().Msg("Golden path mining started")

	for _, p := range aggregate.Periods {
		if ctx.Err() != nil {
			log.Warn().Msg("Golden path mining cancelled")
			return failed
		}
		failed += r.runPeriod(ctx, p)
	}

	log.Info().Int("failed_buckets", failed).Msg("Golden path mining finished")
	return failed
}

func (r *Runner) runPeriod(ctx context.Context, p aggregate.Period) int {
	since := p.WindowStart(r.now())
	rows, err := r.store.QueryPurchasePaths(ctx, string(p), since)
	if err != nil {
		log.Error().Err(err).Str("period", string(p)).Msg("Loading purchase paths failed")
		return 1
	}
	if len(rows) == 0 {
		return 0
	}

	buckets := groupBuckets(p, rows)

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for key, bucketRows := range buckets {
		key, bucketRows := key, bucketRows
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := r.mineBucket(gctx, key, bucketRows); err != nil {
				log.Error().Err(err).
					Str("period", key.periodType).
					Time("period_start", key.periodStart).
					Str("store_id", key.storeID).
					Msg("Mining bucket failed")
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return failed
}

// groupBuckets splits the rollup rows per bucket and expands each row into
// one engine row per counted session, so support reflects sessions rather
// than distinct paths. Bucket starts are re-truncated to the period
// boundary, so rows scanned back with a stray time-of-day component still
// land in one bucket.
func groupBuckets(p aggregate.Period, rows []storage.PathRow) map[bucketKey][]goldenpath.RawPathRow {
	buckets := make(map[bucketKey][]goldenpath.RawPathRow)
	for _, row := range rows {
		start := p.Truncate(row.PeriodStart)
		key := bucketKey{row.PeriodType, start, row.StoreID}
		n := int(row.UserCount)
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			buckets[key] = append(buckets[key], goldenpath.RawPathRow{
				PeriodType:     row.PeriodType,
				PeriodStart:    start,
				StoreID:        row.StoreID,
				Path:           row.Path,
				PurchasedItems: row.PurchasedItems,
			})
		}
	}
	return buckets
}

func (r *Runner) mineBucket(ctx context.Context, key bucketKey, rows []goldenpath.RawPathRow) error {
	bucket, err := goldenpath.Compute(rows, r.opts)
	if err != nil {
		return err
	}

	topJSON, err := json.Marshal(bucket.Top)
	if err != nil {
		return fmt.Errorf("encode top paths: %w", err)
	}
	byItemJSON, err := json.Marshal(bucket.TopByItem)
	if err != nil {
		return fmt.Errorf("encode per-item paths: %w", err)
	}

	return r.store.InsertInsights(ctx, []storage.InsightRow{{
		PeriodType:      key.periodType,
		PeriodStart:     key.periodStart,
		StoreID:         key.storeID,
		TotalSessions:   uint32(bucket.TotalSessions),
		SuccessSessions: uint32(bucket.SuccessSessions),
		Top:             string(topJSON),
		TopByItem:       string(byItemJSON),
		UpdatedAt:       r.now().UTC(),
	}})
}

// TryRunAll is the scheduler's single-flight entry point.
func (r *Runner) TryRunAll(ctx context.Context) bool {
	if !r.mu.TryLock() {
		log.Warn().Msg("Golden path mining already in progress, skipping")
		return false
	}
	defer r.mu.Unlock()

	r.RunAll(ctx)
	return true
}

// TryStart launches a run in the background for the manual trigger, under
// the same single-flight guard as TryRunAll.
func (r *Runner) TryStart(ctx context.Context) bool {
	if !r.mu.TryLock() {
		log.Warn().Msg("Golden path mining already in progress, skipping")
		return false
	}
	go func() {
		defer r.mu.Unlock()
		r.RunAll(ctx)
	}()
	return true
}
