package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	ListTotalMismatches(ctx context.Context, limit decimal.Decimal) ([]TotalMismatch, error)
}

// InventoryPort is the stock side of fulfilment.
type InventoryPort interface {
	CheckAvailability(ctx context.Context, warehouseID int64, reqs []inventory.Requirement) ([]inventory.Availability, error)
	PostMovements(ctx context.Context, batch inventory.MovementBatch) error
	AllowsNegativeStock() bool
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator is notified after order writes.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// TransitionObserver receives status change outcomes.
type TransitionObserver interface {
	ObserveTransition(kind, from, to string)
	ObserveRejectedTransition(kind, from, to string)
}

// Service coordinates order use cases.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	audit       AuditPort
	cache       CacheInvalidator
	observer    TransitionObserver
	logger      *slog.Logger
	sanityLimit decimal.Decimal
	now         func() time.Time
}

// ServiceDeps groups optional collaborators.
type ServiceDeps struct {
	Inventory   InventoryPort
	Audit       AuditPort
	Cache       CacheInvalidator
	Observer    TransitionObserver
	Logger      *slog.Logger
	SanityLimit decimal.Decimal
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := deps.SanityLimit
	if !limit.IsPositive() {
		limit = DefaultSanityLimit
	}
	return &Service{
		repo:        repo,
		inventory:   deps.Inventory,
		audit:       deps.Audit,
		cache:       deps.Cache,
		observer:    deps.Observer,
		logger:      logger,
		sanityLimit: limit,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the input and stores a pending order.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if !input.Kind.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown kind %q", ErrValidation, input.Kind)
	}
	if input.CounterpartyID <= 0 {
		return Order{}, fmt.Errorf("%w: %s required", ErrValidation, counterpartyLabel(input.Kind))
	}
	if input.WarehouseID <= 0 {
		return Order{}, fmt.Errorf("%w: warehouse required", ErrValidation)
	}
	if err := validateLines(input.Lines); err != nil {
		return Order{}, err
	}
	lines := BuildLines(input.Lines)
	order := Order{
		Kind:           input.Kind,
		Number:         strings.TrimSpace(input.Number),
		CounterpartyID: input.CounterpartyID,
		WarehouseID:    input.WarehouseID,
		Status:         StatusPending,
		OrderDate:      input.OrderDate,
		SourceRef:      strings.TrimSpace(input.SourceRef),
		Notes:          strings.TrimSpace(input.Notes),
		TotalAmount:    SumLines(lines),
		CreatedBy:      shared.ActorID(ctx),
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = s.now()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if order.Number == "" {
			number, err := tx.NextNumber(ctx, input.Kind.NumberPrefix(), order.OrderDate)
			if err != nil {
				return err
			}
			order.Number = number
		}
		id, err := tx.Insert(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range lines {
			lines[i].OrderID = id
		}
		return tx.InsertLines(ctx, id, lines)
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	order.Lines = lines
	s.recordAudit(ctx, order, "ORDER_CREATE", map[string]any{
		"number": order.Number,
		"total":  order.TotalAmount.String(),
	})
	s.bump(ctx)
	return order, nil
}

// Get loads an order and verifies its stored total against the lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	total, corrupt := ResolveTotal(order.TotalAmount, order.Lines, s.sanityLimit)
	if corrupt {
		s.logger.Warn("order total inconsistent with lines",
			slog.Int64("order_id", order.ID),
			slog.String("number", order.Number),
			slog.String("stored", order.TotalAmount.String()),
			slog.String("computed", total.String()))
		order.TotalAmount = total
	}
	return order, nil
}

// List returns a page of order headers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown kind %q", ErrValidation, filter.Kind)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// ReplaceLines swaps every line of an editable order and recomputes its total.
func (s *Service) ReplaceLines(ctx context.Context, id int64, inputs []LineInput) (Order, error) {
	if err := validateLines(inputs); err != nil {
		return Order{}, err
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.LinesEditable() {
			return fmt.Errorf("%w: lines are locked in status %s", ErrInvalidState, order.Status)
		}
		lines := BuildLines(inputs)
		for i := range lines {
			lines[i].OrderID = id
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, id, lines); err != nil {
			return err
		}
		order.Lines = lines
		order.TotalAmount = SumLines(lines)
		return tx.UpdateTotal(ctx, id, order.TotalAmount)
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, order, "ORDER_LINES_REPLACE", map[string]any{
		"lines": len(order.Lines),
		"total": order.TotalAmount.String(),
	})
	s.bump(ctx)
	return order, nil
}

// UpdateLine changes one line of an editable order and recomputes the total
// from all lines inside the same transaction.
func (s *Service) UpdateLine(ctx context.Context, orderID, lineID int64, update LineUpdate) (Order, error) {
	if update.Quantity == nil && update.UnitPrice == nil {
		return Order{}, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if update.Quantity != nil && !update.Quantity.IsPositive() {
		return Order{}, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	if update.UnitPrice != nil && update.UnitPrice.IsNegative() {
		return Order{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.LinesEditable() {
			return fmt.Errorf("%w: lines are locked in status %s", ErrInvalidState, order.Status)
		}
		idx := -1
		for i, line := range order.Lines {
			if line.ID == lineID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("line %d: %w", lineID, ErrNotFound)
		}
		line := order.Lines[idx]
		if update.Quantity != nil {
			line.Quantity = *update.Quantity
		}
		if update.UnitPrice != nil {
			line.UnitPrice = *update.UnitPrice
		}
		line.Amount = LineAmount(line.Quantity, line.UnitPrice)
		if err := tx.UpdateLine(ctx, line); err != nil {
			return err
		}
		current, err := tx.Lines(ctx, orderID)
		if err != nil {
			return err
		}
		order.Lines = current
		order.TotalAmount = SumLines(current)
		return tx.UpdateTotal(ctx, orderID, order.TotalAmount)
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, order, "ORDER_LINE_UPDATE", map[string]any{
		"line_id": lineID,
		"total":   order.TotalAmount.String(),
	})
	s.bump(ctx)
	return order, nil
}

// ApplyAction resolves a workflow action to its target status.
func (s *Service) ApplyAction(ctx context.Context, id int64, action Action) (Order, error) {
	target, ok := TargetFor(action)
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
	return s.changeStatus(ctx, id, target)
}

// ChangeStatus moves the order to target when the state machine allows it.
func (s *Service) ChangeStatus(ctx context.Context, id int64, target Status) (Order, error) {
	if !target.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}
	return s.changeStatus(ctx, id, target)
}

// changeStatus validates the transition against the locked row. Shipping
// into payment_pending posts fulfilment stock in the same transaction, so a
// rejected or failed change leaves no ledger rows behind.
func (s *Service) changeStatus(ctx context.Context, id int64, target Status) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !IsValidTransition(order.Status, target) {
			s.observeRejected(order.Kind, order.Status, target)
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
		}
		if target == StatusPaymentPending {
			if err := s.fulfil(ctx, order); err != nil {
				return err
			}
		}
		return tx.UpdateStatus(ctx, id, target)
	})
	if err != nil {
		return Order{}, err
	}
	from := order.Status
	order.Status = target
	if s.observer != nil {
		s.observer.ObserveTransition(string(order.Kind), string(from), string(target))
	}
	s.logger.Info("order status changed",
		slog.Int64("order_id", order.ID),
		slog.String("kind", string(order.Kind)),
		slog.String("from", string(from)),
		slog.String("to", string(target)))
	s.recordAudit(ctx, order, "ORDER_STATUS", map[string]any{
		"from": string(from),
		"to":   string(target),
	})
	s.bump(ctx)
	return order, nil
}

// fulfil posts the stock movements of a shipped order through the
// transaction carried by ctx. Sales orders issue stock, purchase orders
// receive it at line price. A repeat for the same order is a no-op.
func (s *Service) fulfil(ctx context.Context, order Order) error {
	if s.inventory == nil || len(order.Lines) == 0 {
		return nil
	}
	batch := inventory.MovementBatch{
		WarehouseID:    order.WarehouseID,
		TxDate:         s.now(),
		Reference:      order.Number,
		Notes:          fmt.Sprintf("%s order %s", order.Kind, order.Number),
		IdempotencyKey: shared.IdempotencyKey("order-fulfilment", strconv.FormatInt(order.ID, 10)),
	}
	if order.Kind == KindSales {
		batch.Type = inventory.TxIssue
		if !s.inventory.AllowsNegativeStock() {
			avail, err := s.inventory.CheckAvailability(ctx, order.WarehouseID, requirements(order.Lines))
			if err != nil {
				return err
			}
			for _, a := range avail {
				if !a.Sufficient() {
					return fmt.Errorf("%w: item %d short by %s", ErrInsufficientStock, a.ItemID, a.Shortage)
				}
			}
		}
	} else {
		batch.Type = inventory.TxReceipt
	}
	for _, line := range order.Lines {
		movement := inventory.MovementLine{ItemID: line.ItemID, Quantity: line.Quantity}
		if order.Kind == KindPurchase {
			movement.UnitCost = line.UnitPrice
		}
		batch.Lines = append(batch.Lines, movement)
	}
	err := s.inventory.PostMovements(ctx, batch)
	if errors.Is(err, inventory.ErrAlreadyPosted) {
		s.logger.Info("order stock already posted", slog.Int64("order_id", order.ID))
		return nil
	}
	return err
}

// Availability checks stock for the lines of a sales order.
func (s *Service) Availability(ctx context.Context, id int64) ([]inventory.Availability, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Kind != KindSales {
		return nil, fmt.Errorf("%w: availability applies to sales orders", ErrValidation)
	}
	if s.inventory == nil {
		return nil, errors.New("inventory not configured")
	}
	return s.inventory.CheckAvailability(ctx, order.WarehouseID, requirements(order.Lines))
}

// VerifyTotals lists orders whose stored total is inconsistent. A
// non-positive limit uses the configured sanity limit.
func (s *Service) VerifyTotals(ctx context.Context, limit decimal.Decimal) ([]TotalMismatch, error) {
	if !limit.IsPositive() {
		limit = s.sanityLimit
	}
	rows, err := s.repo.ListTotalMismatches(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.logger.Warn("order total mismatch",
			slog.Int64("order_id", row.OrderID),
			slog.String("number", row.Number),
			slog.String("stored", row.StoredTotal.String()),
			slog.String("lines", row.LineTotal.String()))
	}
	return rows, nil
}

// SanityLimit exposes the configured corrupt-total threshold.
func (s *Service) SanityLimit() decimal.Decimal {
	return s.sanityLimit
}

func (s *Service) observeRejected(kind Kind, from, to Status) {
	if s.observer != nil {
		s.observer.ObserveRejectedTransition(string(kind), string(from), string(to))
	}
}

func (s *Service) recordAudit(ctx context.Context, order Order, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["kind"] = string(order.Kind)
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "orders",
		EntityID: strconv.FormatInt(order.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("order audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("order cache bump", slog.Any("error", err))
	}
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	for i, line := range lines {
		if line.ItemID <= 0 {
			return fmt.Errorf("%w: line %d item required", ErrValidation, i+1)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d quantity must be greater than zero", ErrValidation, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d unit price must not be negative", ErrValidation, i+1)
		}
	}
	return nil
}

func requirements(lines []Line) []inventory.Requirement {
	reqs := make([]inventory.Requirement, 0, len(lines))
	for _, line := range lines {
		reqs = append(reqs, inventory.Requirement{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return reqs
}

func counterpartyLabel(kind Kind) string {
	if kind == KindPurchase {
		return "vendor"
	}
	return "customer"
}
