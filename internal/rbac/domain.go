package rbac

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

// ErrUnknownPermission indicates a permission name that is not in the catalogue.
var ErrUnknownPermission = fmt.Errorf("rbac: unknown permission: %w", httpx.ErrValidation)

// Permission represents an atomic capability.
type Permission struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// Store is the persistence used by Service.
type Store interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpsertPermission(ctx context.Context, name, description string) (Permission, error)
	PermissionsByName(ctx context.Context, names []string) ([]Permission, error)
	UserEffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// PermissionResolver yields the permission names granted to a user.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}
