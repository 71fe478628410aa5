package shared

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

func TestRequired(t *testing.T) {
	v, err := Required("code", "  C-01 ")
	require.NoError(t, err)
	require.Equal(t, "C-01", v)

	_, err = Required("code", "   ")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestOptionalEmail(t *testing.T) {
	v, err := OptionalEmail(" Sales@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "sales@example.com", v)

	v, err = OptionalEmail("")
	require.NoError(t, err)
	require.Empty(t, v)

	_, err = OptionalEmail("not-an-email")
	require.ErrorIs(t, err, ErrValidation)
}

func TestMapWriteError(t *testing.T) {
	require.ErrorIs(t, MapWriteError(&pgconn.PgError{Code: "23505"}), ErrDuplicate)
	require.ErrorIs(t, MapWriteError(&pgconn.PgError{Code: "23503"}), httpx.ErrConflict)
	plain := errors.New("boom")
	require.Equal(t, plain, MapWriteError(plain))
	require.NoError(t, MapWriteError(nil))
}
