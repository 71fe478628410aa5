package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/observability"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
	_ "github.com/odyssey-erp/odyssey-smb/internal/testing/guard"
)

func testConfig() *Config {
	return &Config{AppEnv: "test", RateLimitPerMinute: 100, ActorHeader: "X-User-ID"}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInTestModeUnderGuard(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestActorMiddleware(t *testing.T) {
	var got shared.Actor
	var found bool
	h := ActorMiddleware("X-Actor")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor", "42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	require.Equal(t, int64(42), got.UserID)

	for _, raw := range []string{"", "abc", "-3", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Actor", raw)
		h.ServeHTTP(httptest.NewRecorder(), req)
		require.False(t, found, raw)
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{Logger: quietLogger(), Config: testConfig(), Metrics: observability.NewMetrics()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "odyssey_http_requests_total")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRateLimitsByIP(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	router := NewRouter(RouterParams{Logger: quietLogger(), Config: cfg})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: chi.NewRouter()}
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, quietLogger(), time.Second) }()
	cancel()
	require.NoError(t, <-done)
}
