package reconcile

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Sweeper finds products whose reserved counter exceeds the open pending
// demand. That drift can only come from a checkout that crashed between a
// reservation and its compensation; the protocol itself never produces it.
// Log-only by default; Repair decrements the excess with the same guarded
// update the release path uses.
type Sweeper struct {
	DB     *pgxpool.Pool
	Grace  time.Duration // skip products written to recently (in-flight checkouts)
	Repair bool
	Log    zerolog.Logger
}

type drift struct {
	ProductID string
	Reserved  int
	OpenQty   int
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.sweep(ctx); err != nil {
				s.Log.Error().Err(err).Msg("reconcile sweep failed")
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	rows, err := s.DB.Query(ctx, `
		SELECT p.id, p.reserved, COALESCE(SUM(l.qty), 0) AS open_qty
		FROM products p
		LEFT JOIN order_lines l ON l.product_id = p.id
			AND l.order_id IN (SELECT id FROM orders WHERE status = 'pending')
		WHERE p.reserved > 0
		  AND p.updated_at < now() - make_interval(secs => $1)
		GROUP BY p.id, p.reserved
		HAVING p.reserved > COALESCE(SUM(l.qty), 0)`,
		s.Grace.Seconds())
	if err != nil {
		return err
	}
	defer rows.Close()

	var drifts []drift
	for rows.Next() {
		var d drift
		if err := rows.Scan(&d.ProductID, &d.Reserved, &d.OpenQty); err != nil {
			return err
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, d := range drifts {
		d := d
		excess := d.Reserved - d.OpenQty
		s.Log.Warn().Str("product_id", d.ProductID).Int("reserved", d.Reserved).
			Int("open_qty", d.OpenQty).Int("excess", excess).Msg("over-reserved product")
		if !s.Repair {
			continue
		}
		g.Go(func() error {
			return s.repair(gctx, d.ProductID, excess)
		})
	}
	return g.Wait()
}

func (s *Sweeper) repair(ctx context.Context, productID string, excess int) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products
		SET reserved = reserved - $2, updated_at = now()
		WHERE id = $1 AND reserved >= $2`,
		productID, excess)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		s.Log.Info().Str("product_id", productID).Int("excess", excess).Msg("reservation drift repaired")
	}
	return nil
}
