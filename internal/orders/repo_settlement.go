package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCommitInconsistent: a reserved counter was lower than a paid order's
// line quantity. The whole commit is rolled back and the webhook reports
// failure so the gateway redelivers.
var ErrCommitInconsistent = errors.New("reserved stock below order line quantity")

type SettlementRepo struct{ DB *pgxpool.Pool }

// CommitPaid turns the reservation into a permanent deduction together with
// the pending->paid transition, all in one transaction. The status guard is
// part of the UPDATE itself, so exactly one of two concurrent deliveries
// wins; the loser gets (nil, nil) and treats the event as already handled.
func (r *SettlementRepo) CommitPaid(ctx context.Context, sessionID, paymentIntentID string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := flipStatus(ctx, tx, `
		UPDATE orders
		SET status = $2, payment_intent_id = NULLIF($3, ''), updated_at = now()
		WHERE checkout_session_id = $1 AND status = $4
		RETURNING id, COALESCE(user_id, ''), total_cents, currency`,
		sessionID, string(StatusPaid), paymentIntentID, string(StatusPending))
	if err != nil || o == nil {
		return nil, err
	}
	o.Status = StatusPaid
	o.CheckoutSessionID = sessionID
	o.PaymentIntentID = paymentIntentID

	if o.Lines, err = linesTx(ctx, tx, o.ID); err != nil {
		return nil, err
	}
	for _, l := range o.Lines {
		ct, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2, reserved = reserved - $2, updated_at = now()
			WHERE id = $1 AND reserved >= $2`,
			l.ProductID, l.Qty)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() == 0 {
			// rollback via defer; nothing is left partially applied
			return nil, fmt.Errorf("product %s qty %d: %w", l.ProductID, l.Qty, ErrCommitInconsistent)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// FailBySession flips pending->failed for the order behind an expired
// session and returns it with its lines so the caller can release the
// holds. (nil, nil) when no pending order matches.
func (r *SettlementRepo) FailBySession(ctx context.Context, sessionID string) (*Order, error) {
	o, err := flipStatus(ctx, r.DB, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE checkout_session_id = $1 AND status = $3
		RETURNING id, COALESCE(user_id, ''), total_cents, currency`,
		sessionID, string(StatusFailed), string(StatusPending))
	if err != nil || o == nil {
		return nil, err
	}
	o.Status = StatusFailed
	o.CheckoutSessionID = sessionID
	o.Lines, err = linesTx(ctx, r.DB, o.ID)
	return o, err
}

// FailByPaymentIntent is the payment_intent.payment_failed path.
func (r *SettlementRepo) FailByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error) {
	o, err := flipStatus(ctx, r.DB, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE payment_intent_id = $1 AND status = $3
		RETURNING id, COALESCE(user_id, ''), total_cents, currency`,
		paymentIntentID, string(StatusFailed), string(StatusPending))
	if err != nil || o == nil {
		return nil, err
	}
	o.Status = StatusFailed
	o.PaymentIntentID = paymentIntentID
	o.Lines, err = linesTx(ctx, r.DB, o.ID)
	return o, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func flipStatus(ctx context.Context, q querier, sql string, args ...any) (*Order, error) {
	var o Order
	err := q.QueryRow(ctx, sql, args...).Scan(&o.ID, &o.UserID, &o.TotalCents, &o.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func linesTx(ctx context.Context, q querier, orderID string) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, qty, price_cents FROM order_lines WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ProductID, &l.Qty, &l.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
