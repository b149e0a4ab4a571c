package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventOrderPaid    = "OrderPaid"
	EventOrderFailed  = "OrderFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type LineItem struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id,omitempty"`
	Lines      []LineItem `json:"lines"`
	TotalCents int        `json:"total_cents"`
}

type OrderPaidPayload struct {
	OrderID         string `json:"order_id"`
	UserID          string `json:"user_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	AmountCents     int    `json:"amount_cents"`
}

type OrderFailedPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id,omitempty"`
	Reason  string `json:"reason"` // e.g. SESSION_EXPIRED, PAYMENT_FAILED
}
