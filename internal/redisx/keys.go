package redisx

import "time"

const (
	// Cache of order status: order_status:{order_id} -> OrderStatus JSON
	KeyOrderStatus = "order_status:%s"

	// Dedup of event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

// OrderStatus is the cached read-model behind KeyOrderStatus. The owner id
// travels with it so the status read path can enforce ownership without a
// database hit.
type OrderStatus struct {
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
}

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
