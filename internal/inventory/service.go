package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error)
	AllItems(ctx context.Context) ([]Item, error)
	ItemsByIDs(ctx context.Context, ids []int64) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, id int64) error
	Ledger(ctx context.Context, itemIDs []int64, warehouseID int64) ([]LedgerEntry, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double posting.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// CacheInvalidator is notified after stock changes.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	cache       CacheInvalidator
	logger      *slog.Logger
	allowNeg    bool
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service. audit, idem and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cache CacheInvalidator, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		cache:       cache,
		logger:      logger,
		allowNeg:    cfg.AllowNegativeStock,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AllowsNegativeStock reports whether issues may exceed available stock.
func (s *Service) AllowsNegativeStock() bool {
	return s.allowNeg
}

// CreateItem validates and stores a new item.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	item, err := itemFromInput(input)
	if err != nil {
		return Item{}, err
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "ITEM_CREATE", "items", created.ID, map[string]any{"code": created.Code})
	s.bump(ctx)
	return created, nil
}

// UpdateItem replaces the editable fields of an item.
func (s *Service) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	item, err := itemFromInput(input)
	if err != nil {
		return Item{}, err
	}
	item.ID = id
	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "ITEM_UPDATE", "items", id, map[string]any{"code": updated.Code})
	s.bump(ctx)
	return updated, nil
}

// DeleteItem removes an item that has no ledger rows.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "ITEM_DELETE", "items", id, nil)
	s.bump(ctx)
	return nil
}

// GetItem returns an item with stock metrics, optionally for one warehouse.
func (s *Service) GetItem(ctx context.Context, id, warehouseID int64) (ItemView, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return ItemView{}, err
	}
	views, err := s.withMetrics(ctx, []Item{item}, warehouseID, false)
	if err != nil {
		return ItemView{}, err
	}
	return views[0], nil
}

// ListItems returns a page of items with their stock metrics.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]ItemView, int, error) {
	if filter.LowStockOnly {
		low, err := s.lowStock(ctx, filter.WarehouseID)
		if err != nil {
			return nil, 0, err
		}
		f := filter.Normalize()
		start := int(f.Page-1) * f.Limit
		if start >= len(low) {
			return []ItemView{}, len(low), nil
		}
		end := start + f.Limit
		if end > len(low) {
			end = len(low)
		}
		return low[start:end], len(low), nil
	}
	items, total, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.withMetrics(ctx, items, filter.WarehouseID, false)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// LowStock lists every item whose stock is below its minimum.
func (s *Service) LowStock(ctx context.Context) ([]ItemView, error) {
	return s.lowStock(ctx, 0)
}

// AllItemViews returns every item with metrics, used by exports and jobs.
func (s *Service) AllItemViews(ctx context.Context, warehouseID int64) ([]ItemView, error) {
	items, err := s.repo.AllItems(ctx)
	if err != nil {
		return nil, err
	}
	return s.withMetrics(ctx, items, warehouseID, true)
}

// Totals summarises item count, low stock count and total stock value.
func (s *Service) Totals(ctx context.Context) (Totals, error) {
	views, err := s.AllItemViews(ctx, 0)
	if err != nil {
		return Totals{}, err
	}
	totals := Totals{Items: len(views), StockValue: decimal.Zero}
	for _, v := range views {
		if v.Stock.IsLowStock {
			totals.LowStock++
		}
		totals.StockValue = totals.StockValue.Add(v.Stock.StockValue)
	}
	return totals, nil
}

// StockSummary aggregates metrics for the given items.
func (s *Service) StockSummary(ctx context.Context, itemIDs []int64, warehouseID int64) (map[int64]StockMetrics, error) {
	items, err := s.repo.ItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	views, err := s.withMetrics(ctx, items, warehouseID, false)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]StockMetrics, len(views))
	for _, v := range views {
		out[v.ID] = v.Stock
	}
	return out, nil
}

// CheckAvailability compares requirements against warehouse stock. Lines for
// the same item are summed. Negative stock is reported as oversold.
func (s *Service) CheckAvailability(ctx context.Context, warehouseID int64, reqs []Requirement) ([]Availability, error) {
	needed := make(map[int64]decimal.Decimal)
	var order []int64
	for _, req := range reqs {
		if _, ok := needed[req.ItemID]; !ok {
			order = append(order, req.ItemID)
			needed[req.ItemID] = decimal.Zero
		}
		needed[req.ItemID] = needed[req.ItemID].Add(req.Quantity)
	}
	if len(order) == 0 {
		return []Availability{}, nil
	}
	summary, err := s.StockSummary(ctx, order, warehouseID)
	if err != nil {
		return nil, err
	}
	result := make([]Availability, 0, len(order))
	for _, id := range order {
		metrics, ok := summary[id]
		if !ok {
			return nil, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
		}
		available := metrics.CurrentStock
		shortage := needed[id].Sub(available)
		if shortage.IsNegative() {
			shortage = decimal.Zero
		}
		result = append(result, Availability{
			ItemID:    id,
			Required:  needed[id],
			Available: available,
			Shortage:  shortage,
			Oversold:  available.IsNegative(),
		})
	}
	return result, nil
}

// RecordTransaction appends one ledger row.
func (s *Service) RecordTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	if input.ItemID <= 0 || input.WarehouseID <= 0 {
		return Transaction{}, fmt.Errorf("%w: item and warehouse required", ErrValidation)
	}
	if !input.Type.IsValid() {
		return Transaction{}, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, input.Type)
	}
	if !input.Quantity.IsPositive() {
		return Transaction{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return Transaction{}, ErrInvalidUnitCost
	}
	if input.TxDate.IsZero() {
		input.TxDate = s.now()
	}
	if input.Type == TxIssue && !s.allowNeg {
		avail, err := s.CheckAvailability(ctx, input.WarehouseID, []Requirement{{ItemID: input.ItemID, Quantity: input.Quantity}})
		if err != nil {
			return Transaction{}, err
		}
		if !avail[0].Sufficient() {
			return Transaction{}, fmt.Errorf("%w: item %d short by %s", ErrInsufficientStock, input.ItemID, avail[0].Shortage)
		}
	}

	release, err := s.claim(ctx, input.IdempotencyKey)
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		ItemID:      input.ItemID,
		WarehouseID: input.WarehouseID,
		Type:        input.Type,
		Quantity:    decimal.NewNullDecimal(input.Quantity),
		UnitCost:    decimal.NewNullDecimal(input.UnitCost),
		TxDate:      input.TxDate,
		Reference:   strings.TrimSpace(input.Reference),
		Notes:       strings.TrimSpace(input.Notes),
		CreatedBy:   shared.ActorID(ctx),
		CreatedAt:   s.now(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		id, err := repo.InsertTransaction(ctx, tx)
		if err != nil {
			return err
		}
		tx.ID = id
		return nil
	})
	if err != nil {
		release(ctx)
		return Transaction{}, err
	}
	s.recordAudit(ctx, "STOCK_"+string(input.Type), "inventory_transactions", tx.ID, map[string]any{
		"item_id":      tx.ItemID,
		"warehouse_id": tx.WarehouseID,
		"quantity":     input.Quantity.String(),
	})
	s.bump(ctx)
	return tx, nil
}

// PostMovements appends a batch of ledger rows of the same type in one
// transaction. A batch whose idempotency key was seen before returns
// ErrAlreadyPosted without writing.
func (s *Service) PostMovements(ctx context.Context, batch MovementBatch) error {
	if batch.WarehouseID <= 0 {
		return fmt.Errorf("%w: warehouse required", ErrValidation)
	}
	if !batch.Type.IsValid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, batch.Type)
	}
	if len(batch.Lines) == 0 {
		return fmt.Errorf("%w: movement batch is empty", ErrValidation)
	}
	for _, line := range batch.Lines {
		if line.ItemID <= 0 {
			return fmt.Errorf("%w: item required", ErrValidation)
		}
		if !line.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if line.UnitCost.IsNegative() {
			return ErrInvalidUnitCost
		}
	}
	if batch.TxDate.IsZero() {
		batch.TxDate = s.now()
	}
	release, err := s.claim(ctx, batch.IdempotencyKey)
	if err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return ErrAlreadyPosted
		}
		return err
	}
	actor := shared.ActorID(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		for _, line := range batch.Lines {
			_, err := repo.InsertTransaction(ctx, Transaction{
				ItemID:      line.ItemID,
				WarehouseID: batch.WarehouseID,
				Type:        batch.Type,
				Quantity:    decimal.NewNullDecimal(line.Quantity),
				UnitCost:    decimal.NewNullDecimal(line.UnitCost),
				TxDate:      batch.TxDate,
				Reference:   batch.Reference,
				Notes:       batch.Notes,
				CreatedBy:   actor,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		release(ctx)
		return err
	}
	s.recordAudit(ctx, "STOCK_BATCH_"+string(batch.Type), "inventory_transactions", 0, map[string]any{
		"reference":    batch.Reference,
		"warehouse_id": batch.WarehouseID,
		"lines":        len(batch.Lines),
	})
	s.bump(ctx)
	return nil
}

// ListTransactions returns ledger rows.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, filter.Type)
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) lowStock(ctx context.Context, warehouseID int64) ([]ItemView, error) {
	views, err := s.AllItemViews(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	low := make([]ItemView, 0)
	for _, v := range views {
		if v.Stock.IsLowStock {
			low = append(low, v)
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		return low[i].Stock.CurrentStock.Sub(low[i].Stock.MinStock).LessThan(low[j].Stock.CurrentStock.Sub(low[j].Stock.MinStock))
	})
	return low, nil
}

// withMetrics attaches aggregator output to items. With allItems the whole
// ledger is loaded instead of filtering by id.
func (s *Service) withMetrics(ctx context.Context, items []Item, warehouseID int64, allItems bool) ([]ItemView, error) {
	if len(items) == 0 {
		return []ItemView{}, nil
	}
	refs := make([]ItemRef, 0, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		refs = append(refs, item.Ref())
		ids = append(ids, item.ID)
	}
	if allItems {
		ids = nil
	}
	entries, err := s.repo.Ledger(ctx, ids, warehouseID)
	if err != nil {
		return nil, err
	}
	metrics, issues := Aggregate(refs, entries, AggregateOptions{WarehouseID: warehouseID})
	for _, issue := range issues {
		s.logger.Warn("inventory ledger data quality",
			slog.Int64("item_id", issue.ItemID),
			slog.Int("row", issue.Index),
			slog.String("field", issue.Field),
			slog.String("reason", issue.Reason))
	}
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ItemView{Item: item, Stock: metrics[item.ID]})
	}
	return views, nil
}

// claim registers an idempotency key and returns a func that forgets it
// again when the write fails.
func (s *Service) claim(ctx context.Context, key string) (func(context.Context), error) {
	noop := func(context.Context) {}
	if key == "" || s.idempotency == nil {
		return noop, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		if err := s.idempotency.Delete(ctx, key); err != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entityID := strconv.FormatInt(id, 10)
	if id == 0 {
		entityID = "batch"
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("inventory audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("inventory cache bump", slog.Any("error", err))
	}
}

func itemFromInput(input ItemInput) (Item, error) {
	item := Item{
		Code:      strings.TrimSpace(input.Code),
		Name:      strings.TrimSpace(input.Name),
		Unit:      strings.TrimSpace(input.Unit),
		Category:  strings.TrimSpace(input.Category),
		MinStock:  input.MinStock,
		BasePrice: input.BasePrice,
	}
	if item.Code == "" || item.Name == "" {
		return Item{}, fmt.Errorf("%w: code and name required", ErrValidation)
	}
	if item.Unit == "" {
		item.Unit = "pcs"
	}
	if item.MinStock.Valid && item.MinStock.Decimal.IsNegative() {
		return Item{}, fmt.Errorf("%w: min stock must not be negative", ErrValidation)
	}
	if item.BasePrice.Valid && item.BasePrice.Decimal.IsNegative() {
		return Item{}, fmt.Errorf("%w: base price must not be negative", ErrValidation)
	}
	return item, nil
}
