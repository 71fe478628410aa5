package warehouses

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, warehouse Warehouse) (Warehouse, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const returning = "RETURNING id, code, name, COALESCE(address, '') AS address, is_active, created_at, updated_at"

var columns = []string{
	"id", "code", "name", "COALESCE(address, '') AS address", "is_active", "created_at", "updated_at",
}

var sortable = map[string]string{
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	f := filters.Normalize()
	where := squirrel.And{}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, squirrel.Or{squirrel.ILike{"code": like}, squirrel.ILike{"name": like}})
	}
	if filters.IsActive != nil {
		where = append(where, squirrel.Eq{"is_active": *filters.IsActive})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("warehouses").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.Builder().Select(columns...).From("warehouses").Where(where).
		OrderBy(f.OrderBy(sortable, "name ASC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var warehouses []Warehouse
	if err := pgxscan.Select(ctx, r.pool, &warehouses, query, args...); err != nil {
		return nil, 0, err
	}
	return warehouses, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	query, args, err := db.Builder().Select(columns...).From("warehouses").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return Warehouse{}, err
	}
	var w Warehouse
	if err := pgxscan.Get(ctx, r.pool, &w, query, args...); err != nil {
		return Warehouse{}, shared.MapWriteError(err)
	}
	return w, nil
}

func (r *repository) Create(ctx context.Context, w Warehouse) (Warehouse, error) {
	query, args, err := db.Builder().Insert("warehouses").
		Columns("code", "name", "address", "is_active", "created_at", "updated_at").
		Values(w.Code, w.Name, nullable(w.Address), w.IsActive, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix(returning).ToSql()
	if err != nil {
		return Warehouse{}, err
	}
	var created Warehouse
	if err := pgxscan.Get(ctx, r.pool, &created, query, args...); err != nil {
		return Warehouse{}, shared.MapWriteError(err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, w Warehouse) (Warehouse, error) {
	query, args, err := db.Builder().Update("warehouses").SetMap(map[string]any{
		"code":       w.Code,
		"name":       w.Name,
		"address":    nullable(w.Address),
		"is_active":  w.IsActive,
		"updated_at": squirrel.Expr("NOW()"),
	}).Where(squirrel.Eq{"id": id}).Suffix(returning).ToSql()
	if err != nil {
		return Warehouse{}, err
	}
	var updated Warehouse
	if err := pgxscan.Get(ctx, r.pool, &updated, query, args...); err != nil {
		return Warehouse{}, shared.MapWriteError(err)
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	if err != nil {
		return shared.MapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
