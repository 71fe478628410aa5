package customers

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, id int64, customer Customer) (Customer, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const returning = "RETURNING id, code, name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone, " +
	"COALESCE(address, '') AS address, COALESCE(tax_id, '') AS tax_id, credit_limit, is_active, created_at, updated_at"

var columns = []string{
	"id", "code", "name", "COALESCE(email, '') AS email", "COALESCE(phone, '') AS phone",
	"COALESCE(address, '') AS address", "COALESCE(tax_id, '') AS tax_id",
	"credit_limit", "is_active", "created_at", "updated_at",
}

var sortable = map[string]string{
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	f := filters.Normalize()
	where := squirrel.And{}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"code": like},
			squirrel.ILike{"name": like},
			squirrel.ILike{"email": like},
		})
	}
	if filters.IsActive != nil {
		where = append(where, squirrel.Eq{"is_active": *filters.IsActive})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("customers").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.Builder().Select(columns...).From("customers").Where(where).
		OrderBy(f.OrderBy(sortable, "name ASC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var customers []Customer
	if err := pgxscan.Select(ctx, r.pool, &customers, query, args...); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	query, args, err := db.Builder().Select(columns...).From("customers").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return Customer{}, err
	}
	var c Customer
	if err := pgxscan.Get(ctx, r.pool, &c, query, args...); err != nil {
		return Customer{}, shared.MapWriteError(err)
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	query, args, err := db.Builder().Insert("customers").
		Columns("code", "name", "email", "phone", "address", "tax_id", "credit_limit", "is_active", "created_at", "updated_at").
		Values(c.Code, c.Name, nullable(c.Email), nullable(c.Phone), nullable(c.Address), nullable(c.TaxID), c.CreditLimit, c.IsActive,
			squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix(returning).ToSql()
	if err != nil {
		return Customer{}, err
	}
	var created Customer
	if err := pgxscan.Get(ctx, r.pool, &created, query, args...); err != nil {
		return Customer{}, shared.MapWriteError(err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, c Customer) (Customer, error) {
	query, args, err := db.Builder().Update("customers").SetMap(map[string]any{
		"code":         c.Code,
		"name":         c.Name,
		"email":        nullable(c.Email),
		"phone":        nullable(c.Phone),
		"address":      nullable(c.Address),
		"tax_id":       nullable(c.TaxID),
		"credit_limit": c.CreditLimit,
		"is_active":    c.IsActive,
		"updated_at":   squirrel.Expr("NOW()"),
	}).Where(squirrel.Eq{"id": id}).Suffix(returning).ToSql()
	if err != nil {
		return Customer{}, err
	}
	var updated Customer
	if err := pgxscan.Get(ctx, r.pool, &updated, query, args...); err != nil {
		return Customer{}, shared.MapWriteError(err)
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
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
