package vendors

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) (Vendor, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const returning = "RETURNING id, code, name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone, " +
	"COALESCE(address, '') AS address, COALESCE(tax_id, '') AS tax_id, payment_terms_days, is_active, created_at, updated_at"

var columns = []string{
	"id", "code", "name", "COALESCE(email, '') AS email", "COALESCE(phone, '') AS phone",
	"COALESCE(address, '') AS address", "COALESCE(tax_id, '') AS tax_id",
	"payment_terms_days", "is_active", "created_at", "updated_at",
}

var sortable = map[string]string{
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
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

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("vendors").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.Builder().Select(columns...).From("vendors").Where(where).
		OrderBy(f.OrderBy(sortable, "name ASC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var vendors []Vendor
	if err := pgxscan.Select(ctx, r.pool, &vendors, query, args...); err != nil {
		return nil, 0, err
	}
	return vendors, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	query, args, err := db.Builder().Select(columns...).From("vendors").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return Vendor{}, err
	}
	var v Vendor
	if err := pgxscan.Get(ctx, r.pool, &v, query, args...); err != nil {
		return Vendor{}, shared.MapWriteError(err)
	}
	return v, nil
}

func (r *repository) Create(ctx context.Context, v Vendor) (Vendor, error) {
	query, args, err := db.Builder().Insert("vendors").
		Columns("code", "name", "email", "phone", "address", "tax_id", "payment_terms_days", "is_active", "created_at", "updated_at").
		Values(v.Code, v.Name, nullable(v.Email), nullable(v.Phone), nullable(v.Address), nullable(v.TaxID), v.PaymentTerms, v.IsActive,
			squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix(returning).ToSql()
	if err != nil {
		return Vendor{}, err
	}
	var created Vendor
	if err := pgxscan.Get(ctx, r.pool, &created, query, args...); err != nil {
		return Vendor{}, shared.MapWriteError(err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, v Vendor) (Vendor, error) {
	query, args, err := db.Builder().Update("vendors").SetMap(map[string]any{
		"code":               v.Code,
		"name":               v.Name,
		"email":              nullable(v.Email),
		"phone":              nullable(v.Phone),
		"address":            nullable(v.Address),
		"tax_id":             nullable(v.TaxID),
		"payment_terms_days": v.PaymentTerms,
		"is_active":          v.IsActive,
		"updated_at":         squirrel.Expr("NOW()"),
	}).Where(squirrel.Eq{"id": id}).Suffix(returning).ToSql()
	if err != nil {
		return Vendor{}, err
	}
	var updated Vendor
	if err := pgxscan.Get(ctx, r.pool, &updated, query, args...); err != nil {
		return Vendor{}, shared.MapWriteError(err)
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
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
