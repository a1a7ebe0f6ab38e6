package goldenpath

import (
	"sort"
	"strings"
)

const seqSeparator = " → "

// Compute mines one bucket's sessions for its golden paths. The input rows
// must all belong to the same bucket; the caller owns all I/O. Empty input
// yields an empty bucket, invalid options an error.
func Compute(rows []RawPathRow, opts Options) (Bucket, error) {
	if err := opts.Validate(); err != nil {
		return Bucket{}, err
	}
	if opts.Normalize == nil {
		opts.Normalize = NormalizeStep
	}

	bucket := Bucket{Top: []Item{}, TopByItem: []ItemPaths{}}
	if len(rows) == 0 {
		return bucket, nil
	}
	bucket.PeriodType = rows[0].PeriodType
	bucket.PeriodStart = rows[0].PeriodStart
	bucket.StoreID = rows[0].StoreID

	successSet := make(map[string]bool, len(opts.SuccessEndpoints))
	for _, e := range opts.SuccessEndpoints {
		successSet[opts.Normalize(e)] = true
	}

	// Step 1+2: normalize and success-clip each session
	sessions := make([]session, 0, len(rows))
	for _, row := range rows {
		seq := normalizeSteps(row.Path, opts)
		seq, ok := clipToSuccess(seq, successSet, opts.AssumeAllSuccessful)
		sessions = append(sessions, session{seq: seq, purchased: row.PurchasedItems, ok: ok})
	}

	bucket.TotalSessions = len(sessions)
	for _, s := range sessions {
		if s.ok {
			bucket.SuccessSessions++
		}
	}

	// Step 3+4: global mining with the strict filter
	strict := filter{
		minLen:      opts.MinNgramLength,
		minDistinct: opts.MinDistinctPages,
		requireAny:  opts.RequireContainsAny,
		disallow:    opts.DisallowOnlyFrom,
	}
	counts := mine(sessions, successSet, opts.NgramMax, strict)
	bucket.Top = rank(counts, opts.MinSupport, bucket.SuccessSessions, opts)
	if len(bucket.Top) > opts.TopK {
		bucket.Top = bucket.Top[:opts.TopK]
	}

	// Step 5: per-item attribution
	bucket.TopByItem = attributeItems(sessions, successSet, opts)

	return bucket, nil
}

// normalizeSteps applies the normalization function, optionally collapses
// consecutive repeats, and collapses designated entry steps (home, login)
// down to their first occurrence so re-visits don't inflate counts. The
// whole pass is idempotent.
func normalizeSteps(steps []string, opts Options) []string {
	entry := make(map[string]bool, len(opts.CollapseEntrySteps))
	for _, e := range opts.CollapseEntrySteps {
		entry[opts.Normalize(e)] = true
	}

	seenEntry := make(map[string]bool)
	out := make([]string, 0, len(steps))
	for _, raw := range steps {
		s := opts.Normalize(raw)
		if s == "" {
			continue
		}
		if opts.DedupeConsecutive && len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		if entry[s] {
			if seenEntry[s] {
				continue
			}
			seenEntry[s] = true
		}
		out = append(out, s)
	}
	return out
}

// clipToSuccess truncates the sequence at its last success endpoint. A
// sequence without one is kept whole; whether it still counts as successful
// depends on assumeAllSuccessful.
func clipToSuccess(seq []string, successSet map[string]bool, assumeAllSuccessful bool) ([]string, bool) {
	for i := len(seq) - 1; i >= 0; i-- {
		if successSet[seq[i]] {
			return seq[:i+1], true
		}
	}
	return seq, assumeAllSuccessful
}

// filter is the semantic gate a candidate sub-sequence must pass.
type filter struct {
	minLen      int
	minDistinct int
	requireAny  []string
	disallow    []string
	// When set, at least one step must contain this token (item mining).
	requireToken string
}

func (f filter) accept(ng []string) bool {
	if len(ng) < f.minLen {
		return false
	}

	prefix := ng[:len(ng)-1]
	distinct := make(map[string]bool, len(prefix))
	for _, s := range prefix {
		distinct[s] = true
	}
	if len(distinct) < f.minDistinct {
		return false
	}

	if len(f.requireAny) > 0 && !containsAny(ng, f.requireAny) {
		return false
	}

	// Reject trivial "entry → success" pairs
	if len(ng) <= 2 && len(prefix) == 1 {
		for _, d := range f.disallow {
			if prefix[0] == d {
				return false
			}
		}
	}

	if f.requireToken != "" && !containsAny(ng, []string{f.requireToken}) {
		return false
	}
	return true
}

func containsAny(steps []string, patterns []string) bool {
	for _, s := range steps {
		for _, p := range patterns {
			if strings.Contains(s, p) {
				return true
			}
		}
	}
	return false
}

type seqCount struct {
	sequence []string
	support  int
	success  int
}

// mine counts, per distinct success-anchored sub-sequence, the number of
// sessions it occurs in. A sub-sequence is counted at most once per
// session (support is session count, not occurrence count).
func mine(sessions []session, successSet map[string]bool, ngramMax int, f filter) map[string]*seqCount {
	counts := make(map[string]*seqCount)

	for _, sess := range sessions {
		if !sess.ok {
			continue
		}
		seq := sess.seq
		seen := make(map[string]bool)

		maxN := ngramMax
		if len(seq) < maxN {
			maxN = len(seq)
		}
		for n := f.minLen; n <= maxN; n++ {
			for i := 0; i+n <= len(seq); i++ {
				ng := seq[i : i+n]
				if !successSet[ng[n-1]] {
					continue
				}
				if !f.accept(ng) {
					continue
				}

				key := strings.Join(ng, seqSeparator)
				if seen[key] {
					continue
				}
				seen[key] = true

				rec, exists := counts[key]
				if !exists {
					rec = &seqCount{sequence: append([]string(nil), ng...)}
					counts[key] = rec
				}
				rec.support++
				// Anchored at the session's own terminal step
				if ng[n-1] == seq[len(seq)-1] && i+n == len(seq) {
					rec.success++
				}
			}
		}
	}
	return counts
}

// rank thresholds by support, computes coverage and success rate, and sorts
// by (coverage desc, support desc, length desc, successRate desc).
func rank(counts map[string]*seqCount, minSupport, successSessions int, opts Options) []Item {
	items := make([]Item, 0, len(counts))
	for _, rec := range counts {
		if rec.support < minSupport {
			continue
		}

		coverage := 0.0
		if successSessions > 0 {
			coverage = float64(rec.support) / float64(successSessions)
		}

		successRate := 1.0
		if !opts.SuccessRateAlwaysOne && !opts.AssumeAllSuccessful {
			successRate = 0
			if rec.support > 0 {
				successRate = float64(rec.success) / float64(rec.support)
			}
		}

		items = append(items, Item{
			Sequence:    rec.sequence,
			Support:     rec.support,
			SuccessRate: successRate,
			Coverage:    coverage,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Coverage != b.Coverage {
			return a.Coverage > b.Coverage
		}
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if len(a.Sequence) != len(b.Sequence) {
			return len(a.Sequence) > len(b.Sequence)
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		// Stable output for equal metrics
		return strings.Join(a.Sequence, seqSeparator) < strings.Join(b.Sequence, seqSeparator)
	})
	return items
}
