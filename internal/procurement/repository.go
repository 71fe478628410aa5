package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (PurchaseRequest, error)
	CreatePR(ctx context.Context, pr PurchaseRequest) (int64, error)
	InsertLines(ctx context.Context, prID int64, lines []PRLine) error
	UpdateStatus(ctx context.Context, id int64, decision Decision) error
	RecordApproval(ctx context.Context, log shared.ApprovalLog) error
	NextNumber(ctx context.Context, docType string, date time.Time) (string, error)
}

type txRepo struct {
	tx pgx.Tx
}

var prColumns = []string{
	"id", "number", "requested_by", "vendor_id", "needed_by", "status",
	"COALESCE(note, '') AS note",
	"estimated_total", "decided_by", "decided_at",
	"COALESCE(decision_note, '') AS decision_note",
	"order_id", "created_at", "updated_at",
}

var prSort = map[string]string{
	"number":          "number",
	"needed_by":       "needed_by",
	"estimated_total": "estimated_total",
	"status":          "status",
	"created_at":      "created_at",
}

const prLineSelect = `SELECT id, pr_id, line_no, item_id, quantity, estimated_price, amount, COALESCE(note, '') AS note
FROM purchase_request_lines WHERE pr_id = $1 ORDER BY line_no`

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetPR returns purchase request and lines.
func (r *Repository) GetPR(ctx context.Context, id int64) (PurchaseRequest, error) {
	return getPR(ctx, r.pool, id, false)
}

// ListPRs returns a page of request headers and the total count.
func (r *Repository) ListPRs(ctx context.Context, filter ListFilter) ([]PurchaseRequest, int, error) {
	f := filter.Normalize()
	where := squirrel.And{}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}
	if filter.RequestedBy > 0 {
		where = append(where, squirrel.Eq{"requested_by": filter.RequestedBy})
	}
	if f.Search != "" {
		where = append(where, squirrel.ILike{"number": "%" + f.Search + "%"})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("purchase_requests").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query, args, err := db.Builder().Select(prColumns...).From("purchase_requests").Where(where).
		OrderBy(f.OrderBy(prSort, "created_at DESC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var prs []PurchaseRequest
	if err := pgxscan.Select(ctx, r.pool, &prs, query, args...); err != nil {
		return nil, 0, err
	}
	return prs, total, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (PurchaseRequest, error) {
	return getPR(ctx, t.tx, id, true)
}

func (t *txRepo) CreatePR(ctx context.Context, pr PurchaseRequest) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO purchase_requests (number, requested_by, vendor_id, needed_by, status, note, estimated_total, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW(), NOW())
RETURNING id`,
		pr.Number, pr.RequestedBy, pr.VendorID, pr.NeededBy, pr.Status, pr.Note, pr.EstimatedTotal,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (t *txRepo) InsertLines(ctx context.Context, prID int64, lines []PRLine) error {
	if len(lines) == 0 {
		return nil
	}
	insert := db.Builder().Insert("purchase_request_lines").
		Columns("pr_id", "line_no", "item_id", "quantity", "estimated_price", "amount", "note")
	for _, line := range lines {
		var note any
		if line.Note != "" {
			note = line.Note
		}
		insert = insert.Values(prID, line.LineNo, line.ItemID, line.Quantity, line.EstimatedPrice, line.Amount, note)
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

// NextNumber reserves the next document number of docType.
func (t *txRepo) NextNumber(ctx context.Context, docType string, date time.Time) (string, error) {
	return shared.NextDocumentNumber(ctx, t.tx, docType, date)
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, decision Decision) error {
	set := map[string]any{
		"status":     decision.Status,
		"updated_at": squirrel.Expr("NOW()"),
	}
	if decision.DecidedBy > 0 {
		set["decided_by"] = decision.DecidedBy
		set["decided_at"] = decision.DecidedAt
		set["decision_note"] = decision.Note
	}
	if decision.VendorID != nil {
		set["vendor_id"] = *decision.VendorID
	}
	if decision.OrderID != nil {
		set["order_id"] = *decision.OrderID
	}
	query, args, err := db.Builder().Update("purchase_requests").SetMap(set).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordApproval writes the history entry on the same transaction as the
// status change.
func (t *txRepo) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	return shared.NewApprovalRecorder(t.tx, nil).Record(ctx, log)
}

func getPR(ctx context.Context, q db.Querier, id int64, lock bool) (PurchaseRequest, error) {
	builder := db.Builder().Select(prColumns...).From("purchase_requests").Where(squirrel.Eq{"id": id})
	if lock {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return PurchaseRequest{}, err
	}
	var pr PurchaseRequest
	if err := pgxscan.Get(ctx, q, &pr, query, args...); err != nil {
		if db.IsNotFound(err) {
			return PurchaseRequest{}, ErrNotFound
		}
		return PurchaseRequest{}, err
	}
	if err := pgxscan.Select(ctx, q, &pr.Lines, prLineSelect, id); err != nil {
		return PurchaseRequest{}, err
	}
	return pr, nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown vendor or item", ErrValidation)
	default:
		return err
	}
}
