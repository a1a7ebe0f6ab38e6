package goldenpath

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRows(paths [][]string, purchased [][]string) []RawPathRow {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]RawPathRow, len(paths))
	for i, p := range paths {
		var items []string
		if purchased != nil {
			items = purchased[i]
		}
		rows[i] = RawPathRow{
			PeriodType:     "daily",
			PeriodStart:    start,
			StoreID:        "store-1",
			Path:           p,
			PurchasedItems: items,
		}
	}
	return rows
}

func TestComputeEmptyInput(t *testing.T) {
	bucket, err := Compute(nil, DefaultOptions())
	require.NoError(t, err)

	assert.NotNil(t, bucket.Top)
	assert.NotNil(t, bucket.TopByItem)
	assert.Empty(t, bucket.Top)
	assert.Empty(t, bucket.TopByItem)
	assert.Zero(t, bucket.TotalSessions)
}

func TestComputeMinesSharedPath(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/B", "/payment-complete"},
	}, [][]string{
		{"Americano"},
		{"Americano"},
		{"Latte"},
	})

	opts := DefaultOptions()
	opts.MinSupport = 2
	opts.MinNgramLength = 3

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)

	assert.Equal(t, "daily", bucket.PeriodType)
	assert.Equal(t, "store-1", bucket.StoreID)
	assert.Equal(t, 3, bucket.TotalSessions)
	assert.Equal(t, 3, bucket.SuccessSessions)

	require.NotEmpty(t, bucket.Top)
	for _, item := range bucket.Top {
		assert.GreaterOrEqual(t, len(item.Sequence), opts.MinNgramLength)
		assert.Equal(t, "/payment-complete", item.Sequence[len(item.Sequence)-1])
		assert.GreaterOrEqual(t, item.Support, opts.MinSupport)
		assert.InDelta(t, float64(item.Support)/3.0, item.Coverage, 1e-9)
	}

	// The path two sessions share survives; the single-session one does not
	var found bool
	for _, item := range bucket.Top {
		if strings.Join(item.Sequence, " → ") == "/menu/A → /cart → /payment-complete" {
			found = true
			assert.Equal(t, 2, item.Support)
			assert.InDelta(t, 2.0/3.0, item.Coverage, 1e-9)
		}
		assert.NotContains(t, item.Sequence, "/menu/B")
	}
	assert.True(t, found)
}

func TestComputeSortOrder(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/B", "/cart", "/payment-complete"},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 1
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.Greater(t, len(bucket.Top), 1)

	for i := 1; i < len(bucket.Top); i++ {
		prev, cur := bucket.Top[i-1], bucket.Top[i]
		if prev.Coverage != cur.Coverage {
			assert.Greater(t, prev.Coverage, cur.Coverage)
			continue
		}
		if prev.Support != cur.Support {
			assert.Greater(t, prev.Support, cur.Support)
			continue
		}
		if len(prev.Sequence) != len(cur.Sequence) {
			assert.Greater(t, len(prev.Sequence), len(cur.Sequence))
		}
	}
}

func TestComputeTopKBound(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/B", "/cart", "/payment-complete"},
		{"/home", "/menu/C", "/cart", "/payment-complete"},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 1
	opts.TopK = 1
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	assert.Len(t, bucket.Top, 1)
}

func TestComputeBelowMinSupport(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 3
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	assert.Empty(t, bucket.Top)
}

func TestComputeClipsAfterSuccess(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete", "/profile"},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 1
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.NotEmpty(t, bucket.Top)
	for _, item := range bucket.Top {
		assert.NotContains(t, item.Sequence, "/profile")
		assert.Equal(t, "/payment-complete", item.Sequence[len(item.Sequence)-1])
	}
}

func TestComputeNormalization(t *testing.T) {
	// Repeated steps and re-visited entry pages collapse away
	rows := testRows([][]string{
		{"/home", "/home", "/menu/A?from=home", "/home", "/cart/", "/payment-complete"},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 1
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.NotEmpty(t, bucket.Top)

	for _, item := range bucket.Top {
		homes := 0
		for i, step := range item.Sequence {
			assert.Equal(t, NormalizeStep(step), step)
			if step == "/home" {
				homes++
			}
			if i > 0 {
				assert.NotEqual(t, item.Sequence[i-1], step)
			}
		}
		assert.LessOrEqual(t, homes, 1)
	}
}

func TestNormalizeStepIdempotent(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/menu/A?from=home&x=1", "/menu/A"},
		{"/cart/", "/cart"},
		{"/cart", "/cart"},
		{"/", "/"},
		{"", ""},
	}
	for _, c := range cases {
		got := NormalizeStep(c.in)
		assert.Equal(t, c.want, got)
		assert.Equal(t, got, NormalizeStep(got))
	}
}

func TestComputeSuccessSessions(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/A", "/cart"},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 1
	opts.AssumeAllSuccessful = false
	opts.SuccessRateAlwaysOne = false
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, bucket.TotalSessions)
	assert.Equal(t, 1, bucket.SuccessSessions)

	// Coverage is measured against successful sessions only
	require.NotEmpty(t, bucket.Top)
	for _, item := range bucket.Top {
		assert.InDelta(t, float64(item.Support), item.Coverage, 1e-9)
	}
}

func TestComputeSuccessToken(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", SuccessToken},
		{"/home", "/menu/A", "/cart", SuccessToken},
	}, nil)

	opts := DefaultOptions()
	opts.MinSupport = 2
	opts.ByPurchasedTop = 0

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.NotEmpty(t, bucket.Top)
	assert.Equal(t, SuccessToken, bucket.Top[0].Sequence[len(bucket.Top[0].Sequence)-1])
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"no success endpoints", func(o *Options) { o.SuccessEndpoints = nil }},
		{"min ngram too small", func(o *Options) { o.MinNgramLength = 1 }},
		{"ngram max below min", func(o *Options) { o.NgramMax = 2; o.MinNgramLength = 3 }},
		{"min support zero", func(o *Options) { o.MinSupport = 0 }},
		{"min support by item zero", func(o *Options) { o.MinSupportByItem = 0 }},
		{"top k zero", func(o *Options) { o.TopK = 0 }},
		{"negative by purchased top", func(o *Options) { o.ByPurchasedTop = -1 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			opts := DefaultOptions()
			c.mutate(&opts)
			_, err := Compute(testRows([][]string{{"/home"}}, nil), opts)
			assert.Error(t, err)
		})
	}
}
