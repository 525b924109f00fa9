// Package events publishes change notifications for the realtime layer. Every
// event is fanned out as one message per affected user, keyed by user id.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderChanged   = "order.changed"
	TopicBookingChanged = "booking.changed"
	TopicStockLow       = "inventory.stock.low"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventBookingRequested     = "BookingRequested"
	EventBookingStatusChanged = "BookingStatusChanged"
	EventBookingExpired       = "BookingExpired"
	EventStockLow             = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Recipient     string          `json:"recipient"`
	Payload       json.RawMessage `json:"payload"`
}

// Event is what domain code hands to an Emitter.
type Event struct {
	Topic         string
	Type          string
	CorrelationID string
	Recipients    []string
	Payload       any
}

// Emitter delivers events after the originating transaction has committed.
// Emit must not block on the broker and never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

type OrderChangedPayload struct {
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	ShopID     string          `json:"shop_id"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
}

type BookingChangedPayload struct {
	BookingID   string    `json:"booking_id"`
	ServiceID   string    `json:"service_id"`
	CustomerID  string    `json:"customer_id"`
	ProviderID  string    `json:"provider_id"`
	Status      string    `json:"status"`
	BookingDate time.Time `json:"booking_date"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	ShopID    string `json:"shop_id"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

func recipients(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
