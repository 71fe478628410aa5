package vendors

import (
	"context"
	"testing"

		"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

type memoryRepo struct {
	rows       map[int64]Vendor
	referenced map[int64]bool
	nextID     int64
}

func (m *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]Vendor, int, error) {
	out := make([]Vendor, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Vendor, error) {
	c, ok := m.rows[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Create(_ context.Context, c Vendor) (Vendor, error) {
	for _, existing := range m.rows {
		if existing.Code == c.Code {
			return Vendor{}, shared.ErrDuplicate
		}
	}
	m.nextID++
	c.ID = m.nextID
	m.rows[c.ID] = c
	return c, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, c Vendor) (Vendor, error) {
	if _, ok := m.rows[id]; !ok {
		return Vendor{}, shared.ErrNotFound
	}
	c.ID = id
	m.rows[id] = c
	return c, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if m.referenced[id] {
		return shared.ErrInUse
	}
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type bumpCounter int

func (b *bumpCounter) Bump(context.Context) error {
	*b++
	return nil
}

func TestVendorLifecycle(t *testing.T) {
	repo := &memoryRepo{rows: map[int64]Vendor{}, referenced: map[int64]bool{}}
	var bumps bumpCounter
	svc := NewService(repo, &bumps, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, Vendor{Code: " V-001 ", Name: "CV Sumber Baja", Email: "Sales@SumberBaja.co.id", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "V-001", created.Code)
	require.Equal(t, "sales@sumberbaja.co.id", created.Email)

	_, err = svc.Create(ctx, Vendor{Code: "V-001", Name: "Other"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	updated, err := svc.Update(ctx, created.ID, Vendor{Code: "V-001", Name: "CV Sumber Baja Makmur"})
	require.NoError(t, err)
	require.Equal(t, "CV Sumber Baja Makmur", updated.Name)

	repo.referenced[created.ID] = true
	require.ErrorIs(t, svc.Delete(ctx, created.ID), httpx.ErrConflict)
	repo.referenced[created.ID] = false
	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Equal(t, bumpCounter(2), bumps)
}

func TestVendorValidation(t *testing.T) {
	svc := NewService(&memoryRepo{rows: map[int64]Vendor{}}, nil, nil)
	ctx := context.Background()

	cases := []Vendor{
		{Name: "No code"},
		{Code: "V-1"},
		{Code: "V-1", Name: "Bad mail", Email: "nope"},
		{Code: "V-1", Name: "Neg", PaymentTerms: -5},
	}
	for _, c := range cases {
		_, err := svc.Create(ctx, c)
		require.ErrorIs(t, err, httpx.ErrValidation, c.Name)
	}
	_, err := svc.Get(ctx, 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
