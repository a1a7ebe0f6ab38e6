package goldenpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeItemsRanking(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/B", "/cart", "/payment-complete"},
	}, [][]string{
		{"Americano"},
		{"Americano"},
		{"Latte"},
	})

	opts := DefaultOptions()
	opts.MinSupport = 1
	opts.ByPurchasedTop = 2

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)

	require.Len(t, bucket.TopByItem, 2)
	assert.Equal(t, "Americano", bucket.TopByItem[0].Item)
	assert.Equal(t, 2, bucket.TopByItem[0].TotalSessions)
	assert.Equal(t, "Latte", bucket.TopByItem[1].Item)
	assert.Equal(t, 1, bucket.TopByItem[1].TotalSessions)
}

func TestAttributeItemsOnePathPerItem(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/A", "/cart", "/payment-complete"},
	}, [][]string{
		{"Americano"},
		{"Americano"},
	})

	opts := DefaultOptions()
	opts.ByPurchasedTop = 1

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.Len(t, bucket.TopByItem, 1)
	require.Len(t, bucket.TopByItem[0].Top, 1)

	path := bucket.TopByItem[0].Top[0]
	assert.Contains(t, path.Sequence, "/menu/A")
	assert.Equal(t, 2, path.Support)
}

func TestAttributeItemsRelaxFallback(t *testing.T) {
	// One observed purchase of Latte: strict mining (support 2) finds
	// nothing, the ladder still produces exactly one path.
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/B", "/cart", "/payment-complete"},
	}, [][]string{
		{"Americano"},
		{"Americano"},
		{"Latte"},
	})

	opts := DefaultOptions()
	opts.MinSupportByItem = 2

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)

	var latte *ItemPaths
	for i := range bucket.TopByItem {
		if bucket.TopByItem[i].Item == "Latte" {
			latte = &bucket.TopByItem[i]
		}
	}
	require.NotNil(t, latte)
	require.Len(t, latte.Top, 1)
	assert.Contains(t, latte.Top[0].Sequence, "/menu/B")
}

func TestAttributeItemsNoFallback(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/B", "/cart", "/payment-complete"},
	}, [][]string{
		{"Latte"},
	})

	opts := DefaultOptions()
	opts.MinSupportByItem = 2
	opts.EnableRelaxFallback = false

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.Len(t, bucket.TopByItem, 1)
	assert.Empty(t, bucket.TopByItem[0].Top)
}

func TestAttributeItemsTieBreakByName(t *testing.T) {
	rows := testRows([][]string{
		{"/home", "/menu/A", "/cart", "/payment-complete"},
		{"/home", "/menu/B", "/cart", "/payment-complete"},
	}, [][]string{
		{"Latte"},
		{"Americano"},
	})

	opts := DefaultOptions()
	opts.MinSupportByItem = 1

	bucket, err := Compute(rows, opts)
	require.NoError(t, err)
	require.Len(t, bucket.TopByItem, 2)
	assert.Equal(t, "Americano", bucket.TopByItem[0].Item)
	assert.Equal(t, "Latte", bucket.TopByItem[1].Item)
}

func TestDeriveMenuTokens(t *testing.T) {
	sessions := []session{
		{seq: []string{"/home", "/menu/americano", "/cart"}, purchased: []string{"Americano"}, ok: true},
		{seq: []string{"/home", "/menu/americano", "/cart"}, purchased: []string{"Americano"}, ok: true},
		{seq: []string{"/home", "/menu/latte", "/cart"}, purchased: []string{"Latte"}, ok: true},
		// Multi-item sessions are ambiguous and ignored
		{seq: []string{"/menu/mocha", "/menu/latte"}, purchased: []string{"Mocha", "Latte"}, ok: true},
	}

	tokens := DeriveMenuTokens(sessions)
	assert.Equal(t, "/menu/americano", tokens["Americano"])
	assert.Equal(t, "/menu/latte", tokens["Latte"])
	assert.NotContains(t, tokens, "Mocha")
}
