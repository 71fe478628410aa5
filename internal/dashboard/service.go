package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
)

// Counts are the plain counters read from the database.
type Counts struct {
	Customers               int `db:"customers"`
	Vendors                 int `db:"vendors"`
	PendingPurchaseRequests int `db:"pending_purchase_requests"`
	OpenQuotations          int `db:"open_quotations"`
}

// StatusTotal is one kind/status bucket of orders.
type StatusTotal struct {
	Kind   string          `db:"kind"`
	Status string          `db:"status"`
	Orders int             `db:"orders"`
	Total  decimal.Decimal `db:"total"`
}

// Stats is the dashboard payload.
type Stats struct {
	Customers               int             `json:"customers"`
	Vendors                 int             `json:"vendors"`
	Items                   int             `json:"items"`
	LowStockItems           int             `json:"low_stock_items"`
	SalesOrders             map[string]int  `json:"sales_orders"`
	PurchaseOrders          map[string]int  `json:"purchase_orders"`
	PendingPurchaseRequests int             `json:"pending_purchase_requests"`
	OpenQuotations          int             `json:"open_quotations"`
	SalesRevenue            decimal.Decimal `json:"sales_revenue"`
	Receivable              decimal.Decimal `json:"receivable"`
	StockValue              decimal.Decimal `json:"stock_value"`
	GeneratedAt             time.Time       `json:"generated_at"`
}

// RepositoryPort is the query side used by Service.
type RepositoryPort interface {
	Counts(ctx context.Context) (Counts, error)
	OrderTotals(ctx context.Context) ([]StatusTotal, error)
}

// StockPort supplies item and stock value totals.
type StockPort interface {
	Totals(ctx context.Context) (inventory.Totals, error)
}

// Service assembles dashboard stats behind the versioned cache.
type Service struct {
	repo   RepositoryPort
	stock  StockPort
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the collaborators.
func NewService(repo RepositoryPort, stock StockPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		stock:  stock,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns the cached stats, computing them on a miss. Concurrent
// misses for the same cache version share one computation.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "stats")
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return s.compute(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var stats Stats
		err := s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (any, error) {
			return s.compute(ctx)
		})
		return stats, err
	})
	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Stats{}, res.Err
		}
		return res.Val.(Stats), nil
	}
}

func (s *Service) compute(ctx context.Context) (Stats, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("dashboard counts: %w", err)
	}
	rows, err := s.repo.OrderTotals(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("dashboard order totals: %w", err)
	}
	stats := Stats{
		Customers:               counts.Customers,
		Vendors:                 counts.Vendors,
		PendingPurchaseRequests: counts.PendingPurchaseRequests,
		OpenQuotations:          counts.OpenQuotations,
		SalesOrders:             map[string]int{},
		PurchaseOrders:          map[string]int{},
		SalesRevenue:            decimal.Zero,
		Receivable:              decimal.Zero,
		StockValue:              decimal.Zero,
		GeneratedAt:             s.now(),
	}
	for _, row := range rows {
		switch row.Kind {
		case string(orders.KindSales):
			stats.SalesOrders[row.Status] += row.Orders
			switch row.Status {
			case string(orders.StatusCompleted):
				stats.SalesRevenue = stats.SalesRevenue.Add(row.Total)
			case string(orders.StatusPaymentPending):
				stats.Receivable = stats.Receivable.Add(row.Total)
			}
		case string(orders.KindPurchase):
			stats.PurchaseOrders[row.Status] += row.Orders
		}
	}
	if s.stock != nil {
		totals, err := s.stock.Totals(ctx)
		if err != nil {
			return Stats{}, fmt.Errorf("dashboard stock totals: %w", err)
		}
		stats.Items = totals.Items
		stats.LowStockItems = totals.LowStock
		stats.StockValue = totals.StockValue
	}
	return stats, nil
}
