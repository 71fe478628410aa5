package inventory

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
)

// Repository persists items and the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

var itemColumns = []string{
	"id", "code", "name", "unit", "COALESCE(category, '') AS category",
	"min_stock", "base_price", "created_at", "updated_at",
}

var itemSort = map[string]string{
	"code":       "code",
	"name":       "name",
	"category":   "category",
	"created_at": "created_at",
}

var ledgerSort = map[string]string{
	"tx_date": "tx_date",
	"id":      "id",
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListItems returns one page of items and the total count.
func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	f := filter.Normalize()
	where := squirrel.And{}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, squirrel.Or{squirrel.ILike{"code": like}, squirrel.ILike{"name": like}})
	}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"category": filter.Category})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("items").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.Builder().Select(itemColumns...).From("items").Where(where).
		OrderBy(f.OrderBy(itemSort, "code"), "id").
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	items := []Item{}
	if err := pgxscan.Select(ctx, r.pool, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// AllItems returns every item ordered by code.
func (r *Repository) AllItems(ctx context.Context) ([]Item, error) {
	query, args, err := db.Builder().Select(itemColumns...).From("items").OrderBy("code", "id").ToSql()
	if err != nil {
		return nil, err
	}
	items := []Item{}
	if err := pgxscan.Select(ctx, r.pool, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// ItemsByIDs loads the given items; missing ids are skipped.
func (r *Repository) ItemsByIDs(ctx context.Context, ids []int64) ([]Item, error) {
	if len(ids) == 0 {
		return []Item{}, nil
	}
	query, args, err := db.Builder().Select(itemColumns...).From("items").Where(squirrel.Eq{"id": ids}).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	items := []Item{}
	if err := pgxscan.Select(ctx, r.pool, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem loads one item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	query, args, err := db.Builder().Select(itemColumns...).From("items").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return Item{}, err
	}
	var item Item
	if err := pgxscan.Get(ctx, r.pool, &item, query, args...); err != nil {
		if db.IsNotFound(err) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// CreateItem inserts a new item.
func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	now := time.Now().UTC()
	query, args, err := db.Builder().Insert("items").
		Columns("code", "name", "unit", "category", "min_stock", "base_price", "created_at", "updated_at").
		Values(item.Code, item.Name, item.Unit, nullString(item.Category), item.MinStock, item.BasePrice, now, now).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return Item{}, err
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&item.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return Item{}, ErrDuplicateCode
		}
		return Item{}, err
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

// UpdateItem overwrites the editable fields.
func (r *Repository) UpdateItem(ctx context.Context, item Item) (Item, error) {
	now := time.Now().UTC()
	query, args, err := db.Builder().Update("items").SetMap(map[string]any{
		"code":       item.Code,
		"name":       item.Name,
		"unit":       item.Unit,
		"category":   nullString(item.Category),
		"min_stock":  item.MinStock,
		"base_price": item.BasePrice,
		"updated_at": now,
	}).Where(squirrel.Eq{"id": item.ID}).Suffix("RETURNING created_at").ToSql()
	if err != nil {
		return Item{}, err
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&item.CreatedAt); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Item{}, ErrItemNotFound
		case db.IsUniqueViolation(err):
			return Item{}, ErrDuplicateCode
		}
		return Item{}, err
	}
	item.UpdatedAt = now
	return item, nil
}

// DeleteItem removes an item without ledger history.
func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrItemInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Ledger returns ledger entries in insertion order. Empty itemIDs loads the
// ledger of every item; a zero warehouseID spans all warehouses.
func (r *Repository) Ledger(ctx context.Context, itemIDs []int64, warehouseID int64) ([]LedgerEntry, error) {
	q := db.Builder().Select("item_id", "warehouse_id", "tx_type", "quantity", "unit_cost", "tx_date").
		From("inventory_transactions").OrderBy("id")
	if len(itemIDs) > 0 {
		q = q.Where(squirrel.Eq{"item_id": itemIDs})
	}
	if warehouseID != 0 {
		q = q.Where(squirrel.Eq{"warehouse_id": warehouseID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	entries := []LedgerEntry{}
	if err := pgxscan.Select(ctx, db.QuerierFrom(ctx, r.pool), &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListTransactions returns one page of ledger rows, newest first by default.
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	f := filter.Normalize()
	where := squirrel.And{}
	if filter.ItemID != 0 {
		where = append(where, squirrel.Eq{"item_id": filter.ItemID})
	}
	if filter.WarehouseID != 0 {
		where = append(where, squirrel.Eq{"warehouse_id": filter.WarehouseID})
	}
	if filter.Type != "" {
		where = append(where, squirrel.Eq{"tx_type": string(filter.Type)})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"tx_date": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.LtOrEq{"tx_date": *filter.To})
	}
	if f.Search != "" {
		where = append(where, squirrel.ILike{"reference": "%" + f.Search + "%"})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("inventory_transactions").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.SortBy == "" {
		f.SortBy, f.SortDir = "tx_date", "desc"
	}
	query, args, err := db.Builder().Select(
		"id", "item_id", "warehouse_id", "tx_type", "quantity", "unit_cost", "tx_date",
		"COALESCE(reference, '') AS reference", "COALESCE(notes, '') AS notes",
		"COALESCE(created_by, 0) AS created_by", "created_at",
	).From("inventory_transactions").Where(where).
		OrderBy(f.OrderBy(ledgerSort, "tx_date"), "id DESC").
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	txs := []Transaction{}
	if err := pgxscan.Select(ctx, r.pool, &txs, query, args...); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	query, args, err := db.Builder().Insert("inventory_transactions").
		Columns("item_id", "warehouse_id", "tx_type", "quantity", "unit_cost", "tx_date", "reference", "notes", "created_by", "created_at").
		Values(t.ItemID, t.WarehouseID, string(t.Type), t.Quantity, t.UnitCost, t.TxDate, nullString(t.Reference), nullString(t.Notes), nullInt(t.CreatedBy), squirrel.Expr("NOW()")).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if db.IsForeignKeyViolation(err) {
			return 0, fmt.Errorf("item %d warehouse %d: %w", t.ItemID, t.WarehouseID, ErrUnknownReference)
		}
		return 0, err
	}
	return id, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
