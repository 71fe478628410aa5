package dashboard

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
)

type mockRepo struct {
	counts     Counts
	totals     []StatusTotal
	countCalls atomic.Int32
	gate       chan struct{}
}

func (m *mockRepo) Counts(ctx context.Context) (Counts, error) {
	m.countCalls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	return m.counts, nil
}

func (m *mockRepo) OrderTotals(ctx context.Context) ([]StatusTotal, error) {
	return m.totals, nil
}

type fixedStock inventory.Totals

func (f fixedStock) Totals(ctx context.Context) (inventory.Totals, error) {
	return inventory.Totals(f), nil
}

func newTestService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	stock := fixedStock{Items: 4, LowStock: 1, StockValue: decimal.RequireFromString("1250000")}
	return NewService(repo, stock, NewCache(client, time.Minute), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleRepo() *mockRepo {
	return &mockRepo{
		counts: Counts{Customers: 12, Vendors: 5, PendingPurchaseRequests: 2, OpenQuotations: 3},
		totals: []StatusTotal{
			{Kind: "sales", Status: "completed", Orders: 2, Total: decimal.RequireFromString("3000.50")},
			{Kind: "sales", Status: "payment_pending", Orders: 1, Total: decimal.RequireFromString("700")},
			{Kind: "sales", Status: "pending", Orders: 4, Total: decimal.RequireFromString("90")},
			{Kind: "purchase", Status: "shipping", Orders: 1, Total: decimal.RequireFromString("10")},
		},
	}
}

func TestStatsAggregates(t *testing.T) {
	svc := newTestService(t, sampleRepo())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Customers != 12 || stats.Vendors != 5 {
		t.Fatalf("unexpected party counts %+v", stats)
	}
	if stats.SalesOrders["pending"] != 4 || stats.PurchaseOrders["shipping"] != 1 {
		t.Fatalf("unexpected order buckets %+v %+v", stats.SalesOrders, stats.PurchaseOrders)
	}
	if !stats.SalesRevenue.Equal(decimal.RequireFromString("3000.5")) {
		t.Fatalf("expected revenue 3000.5 got %s", stats.SalesRevenue)
	}
	if !stats.Receivable.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("expected receivable 700 got %s", stats.Receivable)
	}
	if stats.Items != 4 || stats.LowStockItems != 1 || !stats.StockValue.Equal(decimal.NewFromInt(1250000)) {
		t.Fatalf("unexpected stock figures %+v", stats)
	}
	if stats.PendingPurchaseRequests != 2 || stats.OpenQuotations != 3 {
		t.Fatalf("unexpected document counts %+v", stats)
	}
}

func TestStatsCachesUntilBump(t *testing.T) {
	repo := sampleRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Stats(ctx); err != nil {
		t.Fatalf("stats: %v", err)
	}
	repo.counts.Customers = 99
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Customers != 12 {
		t.Fatalf("expected cached value 12 got %d", stats.Customers)
	}
	if calls := repo.countCalls.Load(); calls != 1 {
		t.Fatalf("expected 1 repo call, got %d", calls)
	}

	if err := svc.cache.Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	stats, err = svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Customers != 99 {
		t.Fatalf("expected refreshed value 99 got %d", stats.Customers)
	}
	if calls := repo.countCalls.Load(); calls != 2 {
		t.Fatalf("expected repo to refresh, calls %d", calls)
	}
}

func TestStatsCollapsesConcurrentMisses(t *testing.T) {
	repo := sampleRepo()
	repo.gate = make(chan struct{})
	svc := newTestService(t, repo)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Stats(context.Background())
			errs <- err
		}()
	}
	// Let every caller reach the singleflight group before releasing the load.
	deadline := time.Now().Add(2 * time.Second)
	for repo.countCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
	}
	if calls := repo.countCalls.Load(); calls != 1 {
		t.Fatalf("expected one load for concurrent misses, got %d", calls)
	}
}

func TestCacheWithoutRedisFallsThrough(t *testing.T) {
	repo := sampleRepo()
	svc := NewService(repo, nil, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.Stats(context.Background()); err != nil {
			t.Fatalf("stats: %v", err)
		}
	}
	if calls := repo.countCalls.Load(); calls != 2 {
		t.Fatalf("expected uncached loads, got %d", calls)
	}
}

func TestCacheVersionKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "dashboard", "stats")
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if key != "dashboard:stats:v1" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	key, _ = cache.BuildKey(ctx, "dashboard", "stats")
	if key != "dashboard:stats:v2" {
		t.Fatalf("unexpected key after bump %q", key)
	}
	if ver, err := mr.Get(cacheVersionKey); err != nil || ver != "2" {
		t.Fatalf("expected stored version 2, got %q (%v)", ver, err)
	}
}
