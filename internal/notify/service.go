package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/jiastore/storefront/internal/kafka"
	"github.com/jiastore/storefront/internal/orders"
	"github.com/jiastore/storefront/internal/redisx"
)

// orderRef is the slice of the paid/failed payloads the notifier needs.
type orderRef struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// Service keeps the Redis order-status cache in step with the settlement
// events so the read path stays warm after asynchronous transitions.
type Service struct {
	Redis *redis.Client
	Log   zerolog.Logger
}

// HandleOrderEvent is the consumer handler for order.paid / order.failed.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	var status orders.Status
	switch env.EventType {
	case orders.EventOrderPaid:
		status = orders.StatusPaid
	case orders.EventOrderFailed:
		status = orders.StatusFailed
	default:
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "notify", env.EventID)
	if won, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup); err == nil && !won {
		return nil
	}

	// Both payload types carry order_id and the owner's user_id.
	ref, err := kafkax.UnwrapPayload[orderRef](env.Payload)
	if err != nil {
		s.Log.Warn().Err(err).Str("event_id", env.EventID).Msg("undecodable order event")
		return nil
	}
	orderID := ref.OrderID
	if orderID == "" {
		orderID = env.CorrelationID
	}
	if orderID == "" {
		s.Log.Warn().Str("event_id", env.EventID).Msg("order event without order id")
		return nil
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(redisx.OrderStatus{Status: string(status), UserID: ref.UserID})
	if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	s.Log.Info().Str("order_id", orderID).Str("status", string(status)).Msg("status cache refreshed")
	return nil
}
