package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

func TestEmbeddedSeedParses(t *testing.T) {
	seed, err := parseSeed(defaultSeed)
	require.NoError(t, err)
	require.Equal(t, "admin@odyssey.local", seed.Admin.Email)
	require.Equal(t, "admin", seed.Roles[0].Name)
	require.ElementsMatch(t, shared.AllPermissions(), seed.Roles[0].Permissions)
	require.Len(t, seed.Warehouses, 2)
	require.Equal(t, "WH-MAIN", seed.Warehouses[0].Code)
	require.NotNil(t, seed.Items[0].Opening)
	require.Equal(t, "500", seed.Items[0].Opening.Quantity)
}

func TestSeedRejectsUnknownPermission(t *testing.T) {
	_, err := parseSeed([]byte(`
admin: {email: a@b.c, password: secret123}
roles:
  - name: clerk
    permissions: [ledger.post]
`))
	require.ErrorContains(t, err, "ledger.post")
}

func TestSeedRequiresAdmin(t *testing.T) {
	_, err := parseSeed([]byte("roles: []\n"))
	require.Error(t, err)
}
