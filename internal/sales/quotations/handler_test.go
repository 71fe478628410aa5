package quotations

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type staticPermissions map[int64][]string

func (s staticPermissions) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	return s[userID], nil
}

const (
	salesID  int64 = 1
	viewerID int64 = 2
)

func newTestRouter(t *testing.T) (http.Handler, fixture) {
	t.Helper()
	f := newFixture()
	mw := rbac.Middleware{Service: staticPermissions{
		salesID:  shared.AllPermissions(),
		viewerID: {shared.PermQuotationView},
	}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor, ok := shared.ParseActor(req.Header.Get(shared.DefaultActorHeader)); ok {
				req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r.Route("/quotations", NewHandler(logger, f.svc, mw).MountRoutes)
	return r, f
}

func do(h http.Handler, method, path string, user int64, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user > 0 {
		req.Header.Set(shared.DefaultActorHeader, strconv.FormatInt(user, 10))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerQuotationLifecycle(t *testing.T) {
	h, f := newTestRouter(t)
	validUntil := f.now.AddDate(0, 0, 7).Format("2006-01-02T15:04:05Z")

	body := `{"customer_id":1,"valid_until":"` + validUntil + `","lines":[{"item_id":5,"quantity":"2","unit_price":"750"}]}`
	rec := do(h, http.MethodPost, "/quotations/", salesID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Quotation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "1500", created.TotalAmount.String())
	base := "/quotations/" + strconv.FormatInt(created.ID, 10)

	rec = do(h, http.MethodPost, base+"/send", salesID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.mailer.sent, 1)

	rec = do(h, http.MethodPost, base+"/accept", salesID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, base+"/convert", salesID, `{"warehouse_id":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var converted struct {
		Quotation Quotation `json:"quotation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &converted))
	require.Equal(t, QuotationStatusConverted, converted.Quotation.Status)

	rec = do(h, http.MethodPost, base+"/reject", salesID, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerPermissions(t *testing.T) {
	h, f := newTestRouter(t)
	q := f.draft(t, 1)
	path := "/quotations/" + strconv.FormatInt(q.ID, 10)

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, path, viewerID, "").Code)
	require.Equal(t, http.StatusForbidden, do(h, http.MethodPost, path+"/send", viewerID, "").Code)
	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, path, 0, "").Code)
	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/quotations/999", viewerID, "").Code)
}

func TestHandlerSendWithoutEmail(t *testing.T) {
	h, f := newTestRouter(t)
	q := f.draft(t, 2)

	rec := do(h, http.MethodPost, "/quotations/"+strconv.FormatInt(q.ID, 10)+"/send", salesID, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "no email")
}
