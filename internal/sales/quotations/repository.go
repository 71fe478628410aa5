package quotations

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

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
}

// TxRepository exposes the writes performed inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Quotation, error)
	Insert(ctx context.Context, q Quotation) (int64, error)
	InsertLines(ctx context.Context, quotationID int64, lines []QuotationLine) error
	DeleteLines(ctx context.Context, quotationID int64) error
	UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error
	UpdateStatus(ctx context.Context, id int64, change StatusChange) error
	ClearSent(ctx context.Context, id int64) error
	NextNumber(ctx context.Context, docType string, date time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

type txRepository struct {
	tx pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

var quotationColumns = []string{
	"id", "number", "customer_id", "quote_date", "valid_until", "status", "total_amount",
	"COALESCE(notes, '') AS notes",
	"COALESCE(sent_to, '') AS sent_to",
	"sent_at",
	"COALESCE(rejection_reason, '') AS rejection_reason",
	"order_id",
	"COALESCE(created_by, 0) AS created_by",
	"created_at", "updated_at",
}

var quotationSort = map[string]string{
	"number":       "number",
	"quote_date":   "quote_date",
	"valid_until":  "valid_until",
	"total_amount": "total_amount",
	"status":       "status",
}

const quotationLineSelect = `SELECT id, quotation_id, line_no, item_id, COALESCE(description, '') AS description, quantity, unit_price, amount
FROM quotation_lines WHERE quotation_id = $1 ORDER BY line_no`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("quotations repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Quotation, error) {
	return getQuotation(ctx, r.pool, id, false)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	f := filter.Normalize()
	where := squirrel.And{}
	if filter.CustomerID > 0 {
		where = append(where, squirrel.Eq{"customer_id": filter.CustomerID})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}
	if f.Search != "" {
		where = append(where, squirrel.ILike{"number": "%" + f.Search + "%"})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("quotations").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.Builder().Select(quotationColumns...).From("quotations").Where(where).
		OrderBy(f.OrderBy(quotationSort, "quote_date DESC, id DESC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var list []Quotation
	if err := pgxscan.Select(ctx, r.pool, &list, query, args...); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	return getQuotation(ctx, t.tx, id, true)
}

func (t *txRepository) Insert(ctx context.Context, q Quotation) (int64, error) {
	var createdBy any
	if q.CreatedBy > 0 {
		createdBy = q.CreatedBy
	}
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO quotations (number, customer_id, quote_date, valid_until, status, total_amount, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW(), NOW())
RETURNING id`,
		q.Number, q.CustomerID, q.QuoteDate, q.ValidUntil, q.Status, q.TotalAmount, q.Notes, createdBy,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (t *txRepository) InsertLines(ctx context.Context, quotationID int64, lines []QuotationLine) error {
	if len(lines) == 0 {
		return nil
	}
	insert := db.Builder().Insert("quotation_lines").
		Columns("quotation_id", "line_no", "item_id", "description", "quantity", "unit_price", "amount")
	for _, line := range lines {
		insert = insert.Values(quotationID, line.LineNo, line.ItemID, nullable(line.Description), line.Quantity, line.UnitPrice, line.Amount)
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

func (t *txRepository) DeleteLines(ctx context.Context, quotationID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, quotationID)
	return err
}

func (t *txRepository) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE quotations SET total_amount = $1, updated_at = NOW() WHERE id = $2`, total, id)
	return err
}

// ClearSent returns a sent quotation to draft. Rows already moved on are left alone.
func (t *txRepository) ClearSent(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE quotations SET status = $1, sent_to = NULL, sent_at = NULL, updated_at = NOW() WHERE id = $2 AND status = $3`,
		QuotationStatusDraft, id, QuotationStatusSent)
	return err
}

func (t *txRepository) NextNumber(ctx context.Context, docType string, date time.Time) (string, error) {
	return shared.NextDocumentNumber(ctx, t.tx, docType, date)
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, change StatusChange) error {
	set := map[string]any{
		"status":     change.Status,
		"updated_at": squirrel.Expr("NOW()"),
	}
	if change.SentTo != "" {
		set["sent_to"] = change.SentTo
	}
	if change.SentAt != nil {
		set["sent_at"] = *change.SentAt
	}
	if change.RejectionReason != "" {
		set["rejection_reason"] = change.RejectionReason
	}
	if change.OrderID != nil {
		set["order_id"] = *change.OrderID
	}
	query, args, err := db.Builder().Update("quotations").SetMap(set).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func getQuotation(ctx context.Context, q db.Querier, id int64, lock bool) (Quotation, error) {
	builder := db.Builder().Select(quotationColumns...).From("quotations").Where(squirrel.Eq{"id": id})
	if lock {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return Quotation{}, err
	}
	var quotation Quotation
	if err := pgxscan.Get(ctx, q, &quotation, query, args...); err != nil {
		if db.IsNotFound(err) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	if err := pgxscan.Select(ctx, q, &quotation.Lines, quotationLineSelect, id); err != nil {
		return Quotation{}, err
	}
	return quotation, nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown customer or item", ErrValidation)
	default:
		return err
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
