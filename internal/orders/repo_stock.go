package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInsufficientStock: the guarded reserve matched no row — product
	// missing or quantity above availability.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNotReserved: the guarded release matched no row; the hold was
	// already released by a concurrent path.
	ErrNotReserved = errors.New("reservation not held")
)

type StockRepo struct{ DB *pgxpool.Pool }

// Reserve places a hold on qty units in a single conditional statement.
// Two concurrent calls can never jointly reserve past available stock: each
// one either matches the availability guard or fails.
func (r *StockRepo) Reserve(ctx context.Context, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET reserved = reserved + $2, updated_at = now()
		WHERE id = $1 AND stock - reserved >= $2`,
		productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Release reverses a hold without touching stock. The reserved >= qty guard
// protects against underflow when a concurrent release raced the same row.
func (r *StockRepo) Release(ctx context.Context, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET reserved = reserved - $2, updated_at = now()
		WHERE id = $1 AND reserved >= $2`,
		productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotReserved
	}
	return nil
}
