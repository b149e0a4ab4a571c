package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

// GetProducts fetches each referenced product once; the snapshot is reused
// for pricing and for the reservation pass.
func (r *Repo) GetProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, description, price_cents, stock, reserved, created_at, updated_at
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents,
			&p.Stock, &p.Reserved, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, description, price_cents, stock, reserved, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents,
			&p.Stock, &p.Reserved, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePending inserts the order and its lines in one transaction. Prices
// on the lines are the frozen checkout-time prices, never re-read later.
func (r *Repo) CreatePending(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total_cents, currency)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)`,
		o.ID, o.UserID, string(StatusPending), o.TotalCents, o.Currency); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines(order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, l.ProductID, l.Qty, l.PriceCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) AttachSession(ctx context.Context, orderID, sessionID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET checkout_session_id = $2, updated_at = now()
		WHERE id = $1`, orderID, sessionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DeleteIfPending removes an order that never got a live session. The
// status guard avoids racing a fast webhook that already settled it;
// order_lines go with it via ON DELETE CASCADE.
func (r *Repo) DeleteIfPending(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND status = $2`,
		orderID, string(StatusPending))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(user_id, ''), status, total_cents, currency,
		       COALESCE(checkout_session_id, ''), COALESCE(payment_intent_id, ''),
		       created_at, updated_at
		FROM orders WHERE id = $1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.Currency,
			&o.CheckoutSessionID, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Lines, err = r.orderLines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns every order when userID is empty (admin path),
// otherwise only the caller's own.
func (r *Repo) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(user_id, ''), status, total_cents, currency,
		       COALESCE(checkout_session_id, ''), COALESCE(payment_intent_id, ''),
		       created_at, updated_at
		FROM orders
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.Currency,
			&o.CheckoutSessionID, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) orderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	rows, err := r.DB.Query(ctx, `
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
