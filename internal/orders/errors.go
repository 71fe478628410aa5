package orders

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = fmt.Errorf("order not found: %w", httpx.ErrNotFound)
	// ErrInvalidTransition is returned when the status graph forbids a change.
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", httpx.ErrUnprocessable)
	// ErrInvalidState is returned when the order state forbids an edit.
	ErrInvalidState = fmt.Errorf("order state does not allow this operation: %w", httpx.ErrConflict)
	// ErrValidation wraps input errors.
	ErrValidation = fmt.Errorf("order: %w", httpx.ErrValidation)
	// ErrDuplicateNumber is returned when the order number is taken for its kind.
	ErrDuplicateNumber = fmt.Errorf("order number already used: %w", httpx.ErrDuplicate)
	// ErrUnknownReference is returned when a customer, vendor, warehouse or item does not exist.
	ErrUnknownReference = fmt.Errorf("order references unknown record: %w", httpx.ErrValidation)
	// ErrInsufficientStock is returned when shipping would oversell an item.
	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", httpx.ErrConflict)
)
