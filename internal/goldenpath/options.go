package goldenpath

import (
	"fmt"
	"strings"
)

// SuccessToken is the synthetic terminal step producers may append to a
// session path to mark it successful independently of any real screen.
const SuccessToken = "__SUCCESS__"

// Options configures one mining call. Every field has a default (see
// DefaultOptions); callers override individual fields and pass the whole
// value, keeping each toggle independently testable.
type Options struct {
	// Terminal steps marking a session successful.
	SuccessEndpoints []string
	// Longest sub-sequence considered.
	NgramMax int
	// Shortest sub-sequence considered.
	MinNgramLength int
	// Minimum sessions a sub-sequence must appear in (global mining).
	MinSupport int
	// Minimum sessions for per-item attribution before relaxation.
	MinSupportByItem int
	// Minimum distinct steps before the terminal step.
	MinDistinctPages int
	// A candidate must contain a step matching one of these substrings.
	RequireContainsAny []string
	// Shallow entry steps that may not, alone, precede the terminal step.
	DisallowOnlyFrom []string
	// Candidates kept per bucket.
	TopK int
	// How many top-purchased items get an attributed path.
	ByPurchasedTop int
	// Keep only the single best path per item instead of up to TopK.
	OnePathPerItem bool
	// Level-1 item mining requires a step referencing the item's detail page.
	RequireMenuDetailInItemPath bool
	// Walk the relaxation ladder when strict item mining comes up empty.
	EnableRelaxFallback bool
	// Collapse consecutive repeats during normalization.
	DedupeConsecutive bool
	// Treat sessions without a terminal step as successful anyway.
	AssumeAllSuccessful bool
	// Report successRate as 1.0 unconditionally.
	SuccessRateAlwaysOne bool
	// High-frequency entry steps collapsed to a single occurrence.
	CollapseEntrySteps []string
	// Step normalization; defaults to query-string stripping.
	Normalize func(string) string
	// Item name to detail-page token. Derived heuristically from
	// single-item sessions when empty.
	MenuTokenByItem map[string]string
}

func DefaultOptions() Options {
	return Options{
		SuccessEndpoints:            []string{"/payment-complete", SuccessToken},
		NgramMax:                    5,
		MinNgramLength:              3,
		MinSupport:                  3,
		MinSupportByItem:            2,
		MinDistinctPages:            2,
		RequireContainsAny:          []string{"/menu", "/cart", "/payment"},
		DisallowOnlyFrom:            []string{"/home", "/login"},
		TopK:                        10,
		ByPurchasedTop:              3,
		OnePathPerItem:              true,
		RequireMenuDetailInItemPath: true,
		EnableRelaxFallback:         true,
		DedupeConsecutive:           true,
		AssumeAllSuccessful:         true,
		SuccessRateAlwaysOne:        true,
		CollapseEntrySteps:          []string{"/home", "/login"},
		Normalize:                   NormalizeStep,
	}
}

// Validate fails fast on configurations that would silently mine nothing.
func (o Options) Validate() error {
	if len(o.SuccessEndpoints) == 0 {
		return fmt.Errorf("goldenpath: at least one success endpoint required")
	}
	if o.MinNgramLength < 2 {
		return fmt.Errorf("goldenpath: minNgramLength must be >= 2, got %d", o.MinNgramLength)
	}
	if o.NgramMax < o.MinNgramLength {
		return fmt.Errorf("goldenpath: ngramMax %d < minNgramLength %d", o.NgramMax, o.MinNgramLength)
	}
	if o.MinSupport < 1 {
		return fmt.Errorf("goldenpath: minSupport must be >= 1, got %d", o.MinSupport)
	}
	if o.MinSupportByItem < 1 {
		return fmt.Errorf("goldenpath: minSupportByItem must be >= 1, got %d", o.MinSupportByItem)
	}
	if o.TopK < 1 {
		return fmt.Errorf("goldenpath: topK must be >= 1, got %d", o.TopK)
	}
	if o.ByPurchasedTop < 0 {
		return fmt.Errorf("goldenpath: byPurchasedTop must be >= 0, got %d", o.ByPurchasedTop)
	}
	return nil
}

// NormalizeStep strips the query string and any trailing slash, so
// re-normalizing an already-normalized step is a no-op.
func NormalizeStep(step string) string {
	s := step
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 1 {
		s = strings.TrimRight(s, "/")
	}
	return s
}
