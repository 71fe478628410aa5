package warehouses

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	internalShared "github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]Warehouse
	nextID int64
}

func (m *memoryRepo) List(context.Context, shared.ListFilters) ([]Warehouse, int, error) {
	out := make([]Warehouse, 0, len(m.rows))
	for id := int64(1); id <= m.nextID; id++ {
		if w, ok := m.rows[id]; ok {
			out = append(out, w)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Warehouse, error) {
	w, ok := m.rows[id]
	if !ok {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, nil
}

func (m *memoryRepo) Create(_ context.Context, w Warehouse) (Warehouse, error) {
	m.nextID++
	w.ID = m.nextID
	m.rows[w.ID] = w
	return w, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, w Warehouse) (Warehouse, error) {
	w.ID = id
	m.rows[id] = w
	return w, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type grantAll struct{}

func (grantAll) EffectivePermissions(context.Context, int64) ([]string, error) {
	return internalShared.AllPermissions(), nil
}

func newRouter() http.Handler {
	svc := NewService(&memoryRepo{rows: map[int64]Warehouse{}}, nil, nil)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, rbac.Middleware{Service: grantAll{}})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := internalShared.ContextWithActor(req.Context(), internalShared.Actor{UserID: 1})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/warehouses", h.MountRoutes)
	return r
}

func TestWarehouseHandlers(t *testing.T) {
	router := newRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/warehouses/", strings.NewReader(`{"code":"WH-JKT","name":"Jakarta"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"is_active":true`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/warehouses/", strings.NewReader(`{"code":"","name":"Nameless"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"Code":"required"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses/?page=1&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"WH-JKT"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses/42", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/warehouses/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
