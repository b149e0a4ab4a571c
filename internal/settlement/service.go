package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/jiastore/storefront/internal/kafka"
	"github.com/jiastore/storefront/internal/orders"
	"github.com/jiastore/storefront/internal/redisx"
)

// Gateway event types this machine consumes. Anything else is acknowledged
// and ignored.
const (
	EventSessionCompleted = "checkout.session.completed"
	EventSessionExpired   = "checkout.session.expired"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// Event is a signature-verified gateway notification. Verification happens
// before construction (internal/stripegw); Handle never sees raw payloads.
type Event struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	PaymentStatus   string
}

type Settler interface {
	CommitPaid(ctx context.Context, sessionID, paymentIntentID string) (*orders.Order, error)
	FailBySession(ctx context.Context, sessionID string) (*orders.Order, error)
	FailByPaymentIntent(ctx context.Context, paymentIntentID string) (*orders.Order, error)
}

type StockReleaser interface {
	Release(ctx context.Context, productID string, qty int) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Repo  Settler
	Stock StockReleaser
	Redis *redis.Client // optional fast-path dedup

	ProducerPaid   Publisher // order.paid
	ProducerFailed Publisher // order.failed

	ServiceName string
	Log         zerolog.Logger
}

// Handle drives the order status machine from one verified gateway event.
// Safe under at-least-once delivery: the conditional status updates in the
// repo are the idempotency guarantee, the Redis dedup only short-circuits.
// A returned error means the gateway should redeliver.
func (s *Service) Handle(ctx context.Context, ev Event) error {
	if seen, _ := s.dedupSeen(ctx, ev.ID); seen {
		s.Log.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("duplicate event, skipped")
		return nil
	}

	var err error
	switch ev.Type {
	case EventSessionCompleted:
		err = s.handleCompleted(ctx, ev)
	case EventSessionExpired:
		err = s.handleExpired(ctx, ev)
	case EventPaymentFailed:
		err = s.handlePaymentFailed(ctx, ev)
	default:
		s.Log.Info().Str("type", ev.Type).Msg("unhandled event type")
	}
	if err != nil {
		return err
	}

	// Marked only after success so a failed commit is retried on redelivery.
	s.dedupMark(ctx, ev.ID)
	return nil
}

func (s *Service) handleCompleted(ctx context.Context, ev Event) error {
	if ev.PaymentStatus != "paid" {
		s.Log.Info().Str("session_id", ev.SessionID).Str("payment_status", ev.PaymentStatus).
			Msg("session completed without payment, ignored")
		return nil
	}
	order, err := s.Repo.CommitPaid(ctx, ev.SessionID, ev.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("commit paid session %s: %w", ev.SessionID, err)
	}
	if order == nil {
		// lost the status-guarded update or no such order: already handled
		s.Log.Info().Str("session_id", ev.SessionID).Msg("no pending order for completed session")
		return nil
	}
	s.Log.Info().Str("order_id", order.ID).Int("total_cents", order.TotalCents).Msg("order paid")
	s.publish(s.ProducerPaid, orders.EventOrderPaid, order.ID, orders.OrderPaidPayload{
		OrderID:         order.ID,
		UserID:          order.UserID,
		PaymentIntentID: ev.PaymentIntentID,
		AmountCents:     order.TotalCents,
	})
	return nil
}

func (s *Service) handleExpired(ctx context.Context, ev Event) error {
	order, err := s.Repo.FailBySession(ctx, ev.SessionID)
	if err != nil {
		return fmt.Errorf("fail expired session %s: %w", ev.SessionID, err)
	}
	if order == nil {
		return nil
	}
	s.releaseLines(ctx, order)
	s.Log.Info().Str("order_id", order.ID).Msg("order failed, session expired")
	s.publish(s.ProducerFailed, orders.EventOrderFailed, order.ID, orders.OrderFailedPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  "SESSION_EXPIRED",
	})
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, ev Event) error {
	order, err := s.Repo.FailByPaymentIntent(ctx, ev.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("fail payment intent %s: %w", ev.PaymentIntentID, err)
	}
	if order == nil {
		return nil
	}
	// The failed intent leaves the hold in place unless we release it here;
	// the guarded release makes this safe even if an expiry raced us.
	s.releaseLines(ctx, order)
	s.Log.Info().Str("order_id", order.ID).Msg("order failed, payment failed")
	s.publish(s.ProducerFailed, orders.EventOrderFailed, order.ID, orders.OrderFailedPayload{
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  "PAYMENT_FAILED",
	})
	return nil
}

// releaseLines is independent per line: a partial release still moves
// reserved closer to zero and every line is safe to retry.
func (s *Service) releaseLines(ctx context.Context, order *orders.Order) {
	for _, l := range order.Lines {
		if err := s.Stock.Release(ctx, l.ProductID, l.Qty); err != nil {
			s.Log.Warn().Err(err).Str("order_id", order.ID).Str("product_id", l.ProductID).
				Int("qty", l.Qty).Msg("release skipped")
		}
	}
}

func (s *Service) publish(p Publisher, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) dedupSeen(ctx context.Context, eventID string) (bool, error) {
	if s.Redis == nil || eventID == "" {
		return false, nil
	}
	return redisx.Exists(ctx, s.Redis, fmt.Sprintf(redisx.KeyDedup, "settlement", eventID))
}

func (s *Service) dedupMark(ctx context.Context, eventID string) {
	if s.Redis == nil || eventID == "" {
		return
	}
	key := fmt.Sprintf(redisx.KeyDedup, "settlement", eventID)
	if err := s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err(); err != nil {
		s.Log.Warn().Err(err).Str("event_id", eventID).Msg("dedup mark failed")
	}
}
