package customers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
)

type memoryRepo struct {
	rows       map[int64]Customer
	referenced map[int64]bool
	nextID     int64
}

func (m *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]Customer, int, error) {
	out := make([]Customer, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Customer, error) {
	c, ok := m.rows[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Create(_ context.Context, c Customer) (Customer, error) {
	for _, existing := range m.rows {
		if existing.Code == c.Code {
			return Customer{}, shared.ErrDuplicate
		}
	}
	m.nextID++
	c.ID = m.nextID
	m.rows[c.ID] = c
	return c, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, c Customer) (Customer, error) {
	if _, ok := m.rows[id]; !ok {
		return Customer{}, shared.ErrNotFound
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

func TestCustomerLifecycle(t *testing.T) {
	repo := &memoryRepo{rows: map[int64]Customer{}, referenced: map[int64]bool{}}
	var bumps bumpCounter
	svc := NewService(repo, &bumps, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, Customer{Code: " C-001 ", Name: "Toko Maju", Email: "Buyer@TokoMaju.id", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "C-001", created.Code)
	require.Equal(t, "buyer@tokomaju.id", created.Email)

	_, err = svc.Create(ctx, Customer{Code: "C-001", Name: "Other"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	updated, err := svc.Update(ctx, created.ID, Customer{Code: "C-001", Name: "Toko Maju Jaya"})
	require.NoError(t, err)
	require.Equal(t, "Toko Maju Jaya", updated.Name)

	repo.referenced[created.ID] = true
	require.ErrorIs(t, svc.Delete(ctx, created.ID), httpx.ErrConflict)
	repo.referenced[created.ID] = false
	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Equal(t, bumpCounter(2), bumps)
}

func TestCustomerValidation(t *testing.T) {
	svc := NewService(&memoryRepo{rows: map[int64]Customer{}}, nil, nil)
	ctx := context.Background()

	cases := []Customer{
		{Name: "No code"},
		{Code: "C-1"},
		{Code: "C-1", Name: "Bad mail", Email: "nope"},
		{Code: "C-1", Name: "Neg", CreditLimit: decimal.NewNullDecimal(decimal.NewFromInt(-5))},
	}
	for _, c := range cases {
		_, err := svc.Create(ctx, c)
		require.ErrorIs(t, err, httpx.ErrValidation, c.Name)
	}
	_, err := svc.Get(ctx, 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
