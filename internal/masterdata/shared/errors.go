package shared

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/db"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

var (
	ErrNotFound   = fmt.Errorf("resource not found: %w", httpx.ErrNotFound)
	ErrDuplicate  = fmt.Errorf("code already exists: %w", httpx.ErrDuplicate)
	ErrValidation = fmt.Errorf("validation failed: %w", httpx.ErrValidation)
	ErrInUse      = fmt.Errorf("record is referenced by other documents: %w", httpx.ErrConflict)
	ErrInvalidID  = fmt.Errorf("invalid ID: %w", httpx.ErrValidation)
)

// MapWriteError translates constraint violations into package errors.
func MapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	case db.IsForeignKeyViolation(err):
		return ErrInUse
	case db.IsNotFound(err):
		return ErrNotFound
	default:
		return err
	}
}
