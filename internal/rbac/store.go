package rbac

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads permissions from the roles/permissions tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ListPermissions returns all permissions ordered by name.
func (s *PostgresStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	err := pgxscan.Select(ctx, s.pool, &perms, `SELECT id, name, description FROM permissions ORDER BY name`)
	return perms, err
}

// UpsertPermission inserts the permission or refreshes its description.
func (s *PostgresStore) UpsertPermission(ctx context.Context, name, description string) (Permission, error) {
	var perm Permission
	err := pgxscan.Get(ctx, s.pool, &perm, `
INSERT INTO permissions (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
RETURNING id, name, description`, name, description)
	return perm, err
}

// PermissionsByName resolves names into permission rows.
func (s *PostgresStore) PermissionsByName(ctx context.Context, names []string) ([]Permission, error) {
	var perms []Permission
	err := pgxscan.Select(ctx, s.pool, &perms, `SELECT id, name, description FROM permissions WHERE name = ANY($1) ORDER BY name`, names)
	return perms, err
}

// UserEffectivePermissions returns distinct permission names granted to an
// active user through its roles.
func (s *PostgresStore) UserEffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := pgxscan.Select(ctx, s.pool, &names, `
SELECT DISTINCT p.name
FROM users u
JOIN user_roles ur ON ur.user_id = u.id
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE u.id = $1 AND u.is_active
ORDER BY p.name`, userID)
	return names, err
}
