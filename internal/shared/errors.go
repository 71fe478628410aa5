package shared

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = fmt.Errorf("not found: %w", httpx.ErrNotFound)
	// ErrActorRequired is returned when an operation needs an identified user.
	ErrActorRequired = fmt.Errorf("actor required: %w", httpx.ErrUnauthorized)
	// ErrStoreUnavailable signals a nil or unconfigured persistence helper.
	ErrStoreUnavailable = errors.New("store not initialised")
)
