package roles

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const returning = "RETURNING id, name, COALESCE(description, '') AS description, created_at, updated_at"

var columns = []string{"id", "name", "COALESCE(description, '') AS description", "created_at", "updated_at"}

// List returns every role ordered by name.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	query, args, err := db.Builder().Select(columns...).From("roles").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []Role
	err = pgxscan.Select(ctx, r.pool, &rows, query, args...)
	return rows, err
}

// Get loads one role.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	query, args, err := db.Builder().Select(columns...).From("roles").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return Role{}, err
	}
	var role Role
	if err := pgxscan.Get(ctx, r.pool, &role, query, args...); err != nil {
		return Role{}, mapError(err)
	}
	return role, nil
}

// Create inserts a new role.
func (r *Repository) Create(ctx context.Context, name, description string) (Role, error) {
	query, args, err := db.Builder().Insert("roles").
		Columns("name", "description", "created_at", "updated_at").
		Values(name, description, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix(returning).ToSql()
	if err != nil {
		return Role{}, err
	}
	var role Role
	if err := pgxscan.Get(ctx, r.pool, &role, query, args...); err != nil {
		return Role{}, mapError(err)
	}
	return role, nil
}

// Update renames a role.
func (r *Repository) Update(ctx context.Context, id int64, name, description string) (Role, error) {
	query, args, err := db.Builder().Update("roles").SetMap(map[string]any{
		"name":        name,
		"description": description,
		"updated_at":  squirrel.Expr("NOW()"),
	}).Where(squirrel.Eq{"id": id}).Suffix(returning).ToSql()
	if err != nil {
		return Role{}, err
	}
	var role Role
	if err := pgxscan.Get(ctx, r.pool, &role, query, args...); err != nil {
		return Role{}, mapError(err)
	}
	return role, nil
}

// Delete removes a role. Roles still granted to users are refused.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var assigned bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE role_id = $1)`, id).Scan(&assigned); err != nil {
			return err
		}
		if assigned {
			return ErrInUse
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetPermissions replaces the role's grants with permissionIDs.
func (r *Repository) SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		insert := db.Builder().Insert("role_permissions").Columns("role_id", "permission_id")
		for _, id := range permissionIDs {
			insert = insert.Values(roleID, id)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// Permissions lists the permissions granted to a role.
func (r *Repository) Permissions(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	err := pgxscan.Select(ctx, r.pool, &perms, `
SELECT p.id, p.name, p.description
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.name`, roleID)
	return perms, err
}

func mapError(err error) error {
	switch {
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return ErrInUse
	default:
		return err
	}
}
