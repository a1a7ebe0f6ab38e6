package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafesight/cafesight/internal/stream"
)

func TestParseViewScreen(t *testing.T) {
	msg := stream.Message{
		ID: "1717000000000-0",
		Value: []byte(`{
			"eventName": "viewScreen",
			"eventTimestamp": "2025-06-01T10:30:00Z",
			"userId": "user-1",
			"sessionId": "sess-1",
			"payload": {"screenName": "/menu/americano", "storeId": "store-1"}
		}`),
	}

	event, orders, err := Parse(msg)
	require.NoError(t, err)

	assert.Equal(t, "viewScreen", event.EventType)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, "sess-1", event.SessionID)
	assert.Equal(t, "store-1", event.StoreID)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), event.EventTime)
	assert.Contains(t, event.Metadata, "/menu/americano")
	assert.Empty(t, orders)
}

func TestParseDeterministicID(t *testing.T) {
	msg := stream.Message{
		ID: "1717000000000-5",
		Value: []byte(`{
			"eventName": "viewScreen",
			"eventTimestamp": "2025-06-01T10:30:00Z",
			"sessionId": "sess-1",
			"payload": {}
		}`),
	}

	first, _, err := Parse(msg)
	require.NoError(t, err)
	second, _, err := Parse(msg)
	require.NoError(t, err)

	// A redelivered message maps onto the same row
	assert.Equal(t, first.EventID, second.EventID)

	other := msg
	other.ID = "1717000000000-6"
	third, _, err := Parse(other)
	require.NoError(t, err)
	assert.NotEqual(t, first.EventID, third.EventID)
}

func TestParseOrderCreation(t *testing.T) {
	msg := stream.Message{
		ID: "1717000000001-0",
		Value: []byte(`{
			"eventName": "clickInteraction",
			"eventTimestamp": "2025-06-01T11:00:00Z",
			"userId": "user-1",
			"sessionId": "sess-1",
			"payload": {
				"interactionType": "buttonCreateOrder",
				"storeId": "store-1",
				"promotionId": "promo-7",
				"products": [
					{"productCode": "AM-01", "productName": "Americano", "category": "coffee", "quantity": 2, "unitPrice": 4500},
					{"productCode": "CR-02", "price": 6000}
				]
			}
		}`),
	}

	event, orders, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "clickInteraction", event.EventType)
	assert.Equal(t, "promo-7", event.PromotionID)

	require.Len(t, orders, 2)

	// Every line of one creation shares the order id
	assert.Equal(t, orders[0].OrderID, orders[1].OrderID)
	assert.NotEqual(t, event.EventID, orders[0].OrderID)

	first := orders[0]
	assert.Equal(t, "AM-01", first.MenuID)
	assert.Equal(t, "Americano", first.MenuName)
	assert.Equal(t, "coffee", first.Category)
	assert.Equal(t, uint8(2), first.Quantity)
	assert.Equal(t, uint32(4500), first.PricePerItem)
	assert.Equal(t, uint32(9000), first.TotalPrice)
	assert.Equal(t, "initiated", first.Status)
	assert.Equal(t, "promo-7", first.PromotionID)

	// Missing name falls back to the code, missing quantity to 1,
	// missing unitPrice to price
	second := orders[1]
	assert.Equal(t, "CR-02", second.MenuName)
	assert.Equal(t, uint8(1), second.Quantity)
	assert.Equal(t, uint32(6000), second.PricePerItem)
	assert.Equal(t, uint32(6000), second.TotalPrice)
}

func TestParseNonOrderInteraction(t *testing.T) {
	msg := stream.Message{
		ID: "1717000000002-0",
		Value: []byte(`{
			"eventName": "clickInteraction",
			"eventTimestamp": "2025-06-01T11:00:00Z",
			"sessionId": "sess-1",
			"payload": {"interactionType": "buttonAddToCart"}
		}`),
	}

	_, orders, err := Parse(msg)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestParseDuration(t *testing.T) {
	msg := stream.Message{
		ID: "1717000000003-0",
		Value: []byte(`{
			"eventName": "viewScreenDuration",
			"eventTimestamp": "2025-06-01T11:00:00Z",
			"sessionId": "sess-1",
			"payload": {"screenName": "/menu", "durationSeconds": 42}
		}`),
	}

	event, _, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), event.DurationSeconds)
}

func TestParseNegativeDuration(t *testing.T) {
	msg := stream.Message{
		ID: "1717000000004-0",
		Value: []byte(`{
			"eventName": "viewScreenDuration",
			"eventTimestamp": "2025-06-01T11:00:00Z",
			"sessionId": "sess-1",
			"payload": {"screenName": "/menu", "durationSeconds": -5}
		}`),
	}

	event, _, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), event.DurationSeconds)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"invalid json", `{not json`},
		{"missing event name", `{"eventTimestamp": "2025-06-01T11:00:00Z", "sessionId": "s"}`},
		{"missing session", `{"eventName": "viewScreen", "eventTimestamp": "2025-06-01T11:00:00Z"}`},
		{"bad timestamp", `{"eventName": "viewScreen", "eventTimestamp": "yesterday", "sessionId": "s"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := Parse(stream.Message{ID: "1-0", Value: []byte(c.value)})
			assert.Error(t, err)
		})
	}
}
