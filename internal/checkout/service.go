package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/jiastore/storefront/internal/kafka"
	"github.com/jiastore/storefront/internal/orders"
)

// MaxQtyPerLine bounds a single order line; anything above it is noise or
// abuse, not a sale.
const MaxQtyPerLine = 10000

type Catalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]orders.Product, error)
}

type Stock interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
}

type OrderWriter interface {
	CreatePending(ctx context.Context, o *orders.Order) error
	AttachSession(ctx context.Context, orderID, sessionID string) error
	DeleteIfPending(ctx context.Context, orderID string) (bool, error)
}

type SessionLine struct {
	Name            string
	Description     string
	UnitAmountCents int
	Qty             int
}

type SessionRequest struct {
	OrderID    string
	Lines      []SessionLine
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

// Gateway creates the hosted payment session. The concrete implementation
// lives in internal/stripegw.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Catalog  Catalog
	Stock    Stock
	Orders   OrderWriter
	Gateway  Gateway
	Producer Publisher // order.created

	ServiceName string
	SuccessURL  string
	CancelURL   string
	Log         zerolog.Logger
}

// CreateCheckout reserves stock for every item, materializes a pending
// order with frozen prices and asks the gateway for a session. Any failure
// past the first successful reservation compensates every hold taken so
// far. Errors are always a *Failure.
func (s *Service) CreateCheckout(ctx context.Context, userID string, items []orders.ItemInput) (string, error) {
	if err := validate(items); err != nil {
		return "", err
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Catalog.GetProducts(ctx, ids)
	if err != nil {
		return "", internal(err)
	}

	// Reservation pass, in input order. reserved tracks the holds taken so
	// far and drives the compensating rollback.
	var reserved []orders.ItemInput
	for _, it := range items {
		if _, ok := products[it.ProductID]; !ok {
			s.rollback(ctx, reserved)
			return "", outOfStock(it.ProductID, it.Qty)
		}
		if err := s.Stock.Reserve(ctx, it.ProductID, it.Qty); err != nil {
			s.rollback(ctx, reserved)
			if errors.Is(err, orders.ErrInsufficientStock) {
				return "", outOfStock(it.ProductID, it.Qty)
			}
			return "", internal(err)
		}
		reserved = append(reserved, it)
	}

	lines := make([]orders.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, orders.OrderLine{
			ProductID:  it.ProductID,
			Qty:        it.Qty,
			PriceCents: products[it.ProductID].PriceCents,
		})
	}
	order := &orders.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Lines:      lines,
		TotalCents: orders.TotalCents(lines),
		Currency:   "usd",
		Status:     orders.StatusPending,
	}
	if err := s.Orders.CreatePending(ctx, order); err != nil {
		s.rollback(ctx, reserved)
		return "", internal(err)
	}

	sess, err := s.Gateway.CreateSession(ctx, s.sessionRequest(order, products))
	if err != nil {
		s.rollback(ctx, reserved)
		s.deletePending(ctx, order.ID)
		return "", sessionFailed(err)
	}

	if err := s.Orders.AttachSession(ctx, order.ID, sess.ID); err != nil {
		// The session exists on the gateway side but will expire unclaimed;
		// its webhook finds no order and is a no-op.
		s.rollback(ctx, reserved)
		s.deletePending(ctx, order.ID)
		return "", internal(err)
	}

	s.publishCreated(order)
	s.Log.Info().Str("order_id", order.ID).Str("session_id", sess.ID).
		Int("total_cents", order.TotalCents).Msg("checkout session created")
	return sess.URL, nil
}

func validate(items []orders.ItemInput) *Failure {
	if len(items) == 0 {
		return validationf("no items provided")
	}
	for _, it := range items {
		if it.ProductID == "" || len(it.ProductID) > 64 {
			return validationf("invalid product id")
		}
		if it.Qty < 1 {
			return validationf("quantity must be at least 1")
		}
		if it.Qty > MaxQtyPerLine {
			return validationf("quantity above %d for product %s", MaxQtyPerLine, it.ProductID)
		}
	}
	return nil
}

// rollback releases every hold taken so far. Best-effort sequential: a
// failed release is logged and the rest are still attempted.
func (s *Service) rollback(ctx context.Context, reserved []orders.ItemInput) {
	for _, it := range reserved {
		if err := s.Stock.Release(ctx, it.ProductID, it.Qty); err != nil {
			s.Log.Error().Err(err).Str("product_id", it.ProductID).Int("qty", it.Qty).
				Msg("reservation rollback failed")
		}
	}
}

func (s *Service) deletePending(ctx context.Context, orderID string) {
	deleted, err := s.Orders.DeleteIfPending(ctx, orderID)
	if err != nil {
		s.Log.Error().Err(err).Str("order_id", orderID).Msg("pending order cleanup failed")
		return
	}
	if !deleted {
		s.Log.Warn().Str("order_id", orderID).Msg("pending order already settled, not deleted")
	}
}

func (s *Service) sessionRequest(o *orders.Order, products map[string]orders.Product) SessionRequest {
	req := SessionRequest{
		OrderID:    o.ID,
		SuccessURL: s.SuccessURL,
		CancelURL:  s.CancelURL,
	}
	for _, l := range o.Lines {
		p := products[l.ProductID]
		req.Lines = append(req.Lines, SessionLine{
			Name:            p.Name,
			Description:     p.Description,
			UnitAmountCents: l.PriceCents,
			Qty:             l.Qty,
		})
	}
	return req
}

func (s *Service) publishCreated(o *orders.Order) {
	if s.Producer == nil {
		return
	}
	lines := make([]orders.LineItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orders.LineItem{ProductID: l.ProductID, Qty: l.Qty, PriceCents: l.PriceCents})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Lines:      lines,
			TotalCents: o.TotalCents,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
