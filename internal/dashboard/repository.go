package dashboard

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind the dashboard.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Counts returns the master data and document counters.
func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	err := pgxscan.Get(ctx, r.pool, &counts, `
SELECT
  (SELECT COUNT(*) FROM customers WHERE is_active) AS customers,
  (SELECT COUNT(*) FROM vendors WHERE is_active) AS vendors,
  (SELECT COUNT(*) FROM purchase_requests WHERE status = 'submitted') AS pending_purchase_requests,
  (SELECT COUNT(*) FROM quotations WHERE status IN ('draft', 'sent')) AS open_quotations`)
	return counts, err
}

// OrderTotals groups orders by kind and status with their summed totals.
func (r *Repository) OrderTotals(ctx context.Context) ([]StatusTotal, error) {
	var rows []StatusTotal
	err := pgxscan.Select(ctx, r.pool, &rows, `
SELECT kind, status, COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS total
FROM orders
GROUP BY kind, status
ORDER BY kind, status`)
	return rows, err
}
