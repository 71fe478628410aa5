package roles

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
)

var (
	ErrNotFound   = fmt.Errorf("role not found: %w", httpx.ErrNotFound)
	ErrDuplicate  = fmt.Errorf("role name already exists: %w", httpx.ErrDuplicate)
	ErrValidation = fmt.Errorf("invalid role: %w", httpx.ErrValidation)
	ErrInUse      = fmt.Errorf("role is assigned to users: %w", httpx.ErrConflict)
)

// Role represents a role for management.
type Role struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Detail is a role with its granted permissions.
type Detail struct {
	Role
	Permissions []rbac.Permission `json:"permissions"`
}
