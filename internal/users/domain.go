package users

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// MinPasswordLength is the shortest password accepted on create or change.
const MinPasswordLength = 8

var (
	ErrNotFound      = fmt.Errorf("user not found: %w", httpx.ErrNotFound)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	ErrValidation    = fmt.Errorf("invalid user: %w", httpx.ErrValidation)
	ErrWrongPassword = fmt.Errorf("current password does not match: %w", httpx.ErrForbidden)
	ErrRoleNotFound  = fmt.Errorf("role not found: %w", httpx.ErrNotFound)
)

// User represents a user account for management.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RoleRef is a role granted to a user.
type RoleRef struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// CreateInput carries a new account.
type CreateInput struct {
	Email    string
	Name     string
	Password string
	IsActive *bool
}

// UpdateInput changes profile fields. Nil fields are left alone.
type UpdateInput struct {
	Name     *string
	IsActive *bool
}

// PasswordChange replaces a password. Current is required when users change
// their own password.
type PasswordChange struct {
	Current string
	New     string
}

// ListFilter narrows List.
type ListFilter struct {
	shared.ListFilter
	IsActive *bool
}
