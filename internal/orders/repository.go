package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// Repository persists orders and their lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	Insert(ctx context.Context, order Order) (int64, error)
	InsertLines(ctx context.Context, orderID int64, lines []Line) error
	DeleteLines(ctx context.Context, orderID int64) error
	Lines(ctx context.Context, orderID int64) ([]Line, error)
	UpdateLine(ctx context.Context, line Line) error
	UpdateTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	UpdateStatus(ctx context.Context, orderID int64, status Status) error
	NextNumber(ctx context.Context, docType string, date time.Time) (string, error)
}

type txRepository struct {
	tx pgx.Tx
}

var orderColumns = []string{
	"o.id", "o.kind", "o.number",
	"COALESCE(o.customer_id, o.vendor_id) AS counterparty_id",
	"o.warehouse_id", "o.status", "o.order_date",
	"COALESCE(o.source_ref, '') AS source_ref",
	"COALESCE(o.notes, '') AS notes",
	"o.total_amount", "COALESCE(o.created_by, 0) AS created_by",
	"o.created_at", "o.updated_at",
}

var orderSort = map[string]string{
	"number":       "o.number",
	"order_date":   "o.order_date",
	"total_amount": "o.total_amount",
	"status":       "o.status",
	"created_at":   "o.created_at",
}

const lineSelect = `SELECT id, order_id, line_no, item_id, quantity, unit_price, amount FROM order_lines WHERE order_id = $1 ORDER BY line_no`

// WithTx executes the callback inside repeatable-read transaction. The
// callback context carries the transaction, so inventory writes made with it
// commit or roll back together with the order.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(db.ContextWithTx(ctx, tx), &txRepository{tx: tx})
	})
}

// Get loads an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// List returns a page of order headers and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	f := filter.Normalize()
	where := squirrel.And{}
	if filter.Kind != "" {
		where = append(where, squirrel.Eq{"o.kind": filter.Kind})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"o.status": filter.Status})
	}
	if filter.CounterpartyID > 0 {
		where = append(where, squirrel.Or{
			squirrel.Eq{"o.customer_id": filter.CounterpartyID},
			squirrel.Eq{"o.vendor_id": filter.CounterpartyID},
		})
	}
	if f.Search != "" {
		where = append(where, squirrel.ILike{"o.number": "%" + f.Search + "%"})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("orders o").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.Builder().Select(orderColumns...).From("orders o").Where(where).
		OrderBy(f.OrderBy(orderSort, "o.created_at DESC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var orders []Order
	if err := pgxscan.Select(ctx, r.pool, &orders, query, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListTotalMismatches finds orders whose stored total differs from the sum of
// their lines or exceeds limit.
func (r *Repository) ListTotalMismatches(ctx context.Context, limit decimal.Decimal) ([]TotalMismatch, error) {
	var rows []TotalMismatch
	err := pgxscan.Select(ctx, r.pool, &rows, `
SELECT o.id AS order_id, o.number, o.total_amount AS stored_total,
       COALESCE(SUM(l.quantity * l.unit_price), 0) AS line_total
FROM orders o
LEFT JOIN order_lines l ON l.order_id = o.id
GROUP BY o.id, o.number, o.total_amount
HAVING o.total_amount <> COALESCE(SUM(l.quantity * l.unit_price), 0)
    OR o.total_amount > $1
ORDER BY o.id`, limit)
	return rows, err
}

// GetForUpdate loads an order and locks its header row.
func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

// Insert stores the header; counterparty goes to customer_id or vendor_id by kind.
func (t *txRepository) Insert(ctx context.Context, order Order) (int64, error) {
	var customerID, vendorID any
	if order.Kind == KindPurchase {
		vendorID = order.CounterpartyID
	} else {
		customerID = order.CounterpartyID
	}
	var createdBy any
	if order.CreatedBy > 0 {
		createdBy = order.CreatedBy
	}
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO orders (kind, number, customer_id, vendor_id, warehouse_id, status, order_date, source_ref, notes, total_amount, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, NOW(), NOW())
RETURNING id`,
		order.Kind, order.Number, customerID, vendorID, order.WarehouseID, order.Status,
		order.OrderDate, order.SourceRef, order.Notes, order.TotalAmount, createdBy,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

// InsertLines appends lines in one batch.
func (t *txRepository) InsertLines(ctx context.Context, orderID int64, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	insert := db.Builder().Insert("order_lines").
		Columns("order_id", "line_no", "item_id", "quantity", "unit_price", "amount")
	for _, line := range lines {
		insert = insert.Values(orderID, line.LineNo, line.ItemID, line.Quantity, line.UnitPrice, line.Amount)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// DeleteLines removes all lines of an order.
func (t *txRepository) DeleteLines(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID)
	return err
}

// Lines reads the current lines inside the transaction.
func (t *txRepository) Lines(ctx context.Context, orderID int64) ([]Line, error) {
	var lines []Line
	err := pgxscan.Select(ctx, t.tx, &lines, lineSelect, orderID)
	return lines, err
}

// UpdateLine writes quantity, price and amount of one line.
func (t *txRepository) UpdateLine(ctx context.Context, line Line) error {
	tag, err := t.tx.Exec(ctx, `UPDATE order_lines SET quantity = $1, unit_price = $2, amount = $3 WHERE id = $4 AND order_id = $5`,
		line.Quantity, line.UnitPrice, line.Amount, line.ID, line.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line %d: %w", line.ID, ErrNotFound)
	}
	return nil
}

// UpdateTotal stores the recomputed total.
func (t *txRepository) UpdateTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET total_amount = $1, updated_at = NOW() WHERE id = $2`, total, orderID)
	return err
}

// NextNumber reserves the next document number of docType.
func (t *txRepository) NextNumber(ctx context.Context, docType string, date time.Time) (string, error) {
	return shared.NextDocumentNumber(ctx, t.tx, docType, date)
}

// UpdateStatus stores the new status.
func (t *txRepository) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, orderID)
	return err
}

func getOrder(ctx context.Context, q db.Querier, id int64, lock bool) (Order, error) {
	builder := db.Builder().Select(orderColumns...).From("orders o").Where(squirrel.Eq{"o.id": id})
	if lock {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return Order{}, err
	}
	var order Order
	if err := pgxscan.Get(ctx, q, &order, query, args...); err != nil {
		if db.IsNotFound(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	if err := pgxscan.Select(ctx, q, &order.Lines, lineSelect, id); err != nil {
		return Order{}, err
	}
	return order, nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicateNumber
	case db.IsForeignKeyViolation(err):
		return ErrUnknownReference
	default:
		return err
	}
}
