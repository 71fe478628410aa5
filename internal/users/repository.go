package users

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var columns = []string{"id", "email", "name", "is_active", "password_hash", "created_at", "updated_at"}

const returning = "RETURNING id, email, name, is_active, password_hash, created_at, updated_at"

var sortable = map[string]string{
	"email":      "email",
	"name":       "name",
	"created_at": "created_at",
}

// List returns one page of users and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	f := filter.Normalize()
	where := squirrel.And{}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, squirrel.Or{squirrel.ILike{"email": like}, squirrel.ILike{"name": like}})
	}
	if filter.IsActive != nil {
		where = append(where, squirrel.Eq{"is_active": *filter.IsActive})
	}

	countSQL, countArgs, err := db.Builder().Select("COUNT(*)").From("users").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query, args, err := db.Builder().Select(columns...).From("users").Where(where).
		OrderBy(f.OrderBy(sortable, "email ASC")).
		Limit(uint64(f.Limit)).Offset(db.Offset(f.Page, f.Limit)).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var rows []User
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Get loads a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	query, args, err := db.Builder().Select(columns...).From("users").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return User{}, err
	}
	var u User
	if err := pgxscan.Get(ctx, r.pool, &u, query, args...); err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

// Create inserts the account.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	query, args, err := db.Builder().Insert("users").
		Columns("email", "name", "password_hash", "is_active", "created_at", "updated_at").
		Values(u.Email, u.Name, u.PasswordHash, u.IsActive, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix(returning).ToSql()
	if err != nil {
		return User{}, err
	}
	var created User
	if err := pgxscan.Get(ctx, r.pool, &created, query, args...); err != nil {
		return User{}, mapError(err)
	}
	return created, nil
}

// Update writes name and active flag.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	query, args, err := db.Builder().Update("users").SetMap(map[string]any{
		"name":       u.Name,
		"is_active":  u.IsActive,
		"updated_at": squirrel.Expr("NOW()"),
	}).Where(squirrel.Eq{"id": u.ID}).Suffix(returning).ToSql()
	if err != nil {
		return User{}, err
	}
	var updated User
	if err := pgxscan.Get(ctx, r.pool, &updated, query, args...); err != nil {
		return User{}, mapError(err)
	}
	return updated, nil
}

// SetPassword stores a new hash.
func (r *Repository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignRole grants a role. Granting an existing role is a no-op.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if db.IsForeignKeyViolation(err) {
		return ErrRoleNotFound
	}
	return err
}

// RemoveRole revokes a role.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// Roles lists the roles granted to a user.
func (r *Repository) Roles(ctx context.Context, userID int64) ([]RoleRef, error) {
	var rows []RoleRef
	err := pgxscan.Select(ctx, r.pool, &rows, `
SELECT r.id, r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY r.name`, userID)
	return rows, err
}

func mapError(err error) error {
	switch {
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrEmailTaken
	default:
		return err
	}
}
