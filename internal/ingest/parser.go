package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cafesight/cafesight/internal/storage"
	"github.com/cafesight/cafesight/internal/stream"
)

// Envelope is the wire format produced by the client loggers.
type Envelope struct {
	EventName      string         `json:"eventName"`
	EventTimestamp string         `json:"eventTimestamp"`
	UserID         string         `json:"userId"`
	SessionID      string         `json:"sessionId"`
	Payload        map[string]any `json:"payload"`
}

const (
	eventClickInteraction  = "clickInteraction"
	interactionCreateOrder = "buttonCreateOrder"
	orderStatusInitiated   = "initiated"
)

// factNamespace seeds UUIDv5 fact ids. Ids are derived from the message's
// position in the log, so a redelivered message maps onto the same rows.
var factNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Parse turns one log message into an event fact and, for order-creation
// interactions carrying line items, one order row per item. The order rows
// share a single order id derived from the message position.
func Parse(msg stream.Message) (storage.EventRow, []storage.OrderRow, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return storage.EventRow{}, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.EventName == "" || env.SessionID == "" {
		return storage.EventRow{}, nil, fmt.Errorf("envelope missing eventName or sessionId")
	}

	eventTime, err := time.Parse(time.RFC3339, env.EventTimestamp)
	if err != nil {
		return storage.EventRow{}, nil, fmt.Errorf("parse eventTimestamp %q: %w", env.EventTimestamp, err)
	}

	metadata, err := json.Marshal(env.Payload)
	if err != nil {
		return storage.EventRow{}, nil, fmt.Errorf("marshal payload: %w", err)
	}

	// Negative durations would wrap in the unsigned column
	duration := intField(env.Payload, "durationSeconds")
	if duration < 0 {
		duration = 0
	}

	event := storage.EventRow{
		EventID:         uuid.NewSHA1(factNamespace, []byte(msg.ID)),
		UserID:          env.UserID,
		SessionID:       env.SessionID,
		EventType:       env.EventName,
		EventTime:       eventTime,
		StoreID:         stringField(env.Payload, "storeId"),
		Metadata:        string(metadata),
		PromotionID:     stringField(env.Payload, "promotionId"),
		DurationSeconds: uint32(duration),
	}

	orders := parseOrderLines(msg.ID, env, eventTime)
	return event, orders, nil
}

func parseOrderLines(msgID string, env Envelope, orderedAt time.Time) []storage.OrderRow {
	if env.EventName != eventClickInteraction {
		return nil
	}
	if stringField(env.Payload, "interactionType") != interactionCreateOrder {
		return nil
	}

	products, ok := env.Payload["products"].([]any)
	if !ok || len(products) == 0 {
		return nil
	}

	// One order id shared by every line of this creation attempt
	orderID := uuid.NewSHA1(factNamespace, []byte(msgID+"/order"))
	promotionID := stringField(env.Payload, "promotionId")

	var rows []storage.OrderRow
	for _, p := range products {
		product, ok := p.(map[string]any)
		if !ok {
			continue
		}

		menuID := stringField(product, "productCode")
		if menuID == "" {
			continue
		}

		quantity := intField(product, "quantity")
		if quantity <= 0 {
			quantity = 1
		}
		price := floatField(product, "unitPrice")
		if price == 0 {
			price = floatField(product, "price")
		}

		menuName := stringField(product, "productName")
		if menuName == "" {
			menuName = menuID
		}

		rows = append(rows, storage.OrderRow{
			OrderID:      orderID,
			UserID:       env.UserID,
			SessionID:    env.SessionID,
			StoreID:      stringField(env.Payload, "storeId"),
			MenuID:       menuID,
			MenuName:     menuName,
			Category:     stringField(product, "category"),
			Quantity:     uint8(quantity),
			PricePerItem: uint32(price),
			TotalPrice:   uint32(price * float64(quantity)),
			Status:       orderStatusInitiated,
			OrderedAt:    orderedAt,
			UpdatedAt:    orderedAt,
			PromotionID:  promotionID,
		})
	}
	return rows
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	return int(floatField(m, key))
}

func floatField(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
