package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
	"github.com/odyssey-erp/odyssey-smb/jobs"
)

// CustomerLookup resolves the recipient of a quotation.
type CustomerLookup interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// EmailEnqueuer hands the rendered quotation to the background worker.
type EmailEnqueuer interface {
	EnqueueQuotationEmail(ctx context.Context, payload jobs.QuotationEmailPayload) error
}

// OrderCreator opens the sales order of a converted quotation.
type OrderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (orders.Order, error)
}

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

type Service struct {
	repo      Repository
	customers CustomerLookup
	mailer    EmailEnqueuer
	orders    OrderCreator
	audit     AuditPort
	cache     CacheInvalidator
	logger    *slog.Logger
	now       func() time.Time
}

// ServiceDeps groups collaborators of Service.
type ServiceDeps struct {
	Customers CustomerLookup
	Mailer    EmailEnqueuer
	Orders    OrderCreator
	Audit     AuditPort
	Cache     CacheInvalidator
	Logger    *slog.Logger
}

func NewService(repo Repository, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		customers: deps.Customers,
		mailer:    deps.Mailer,
		orders:    deps.Orders,
		audit:     deps.Audit,
		cache:     deps.Cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a draft quotation.
func (s *Service) Create(ctx context.Context, input CreateInput) (Quotation, error) {
	if input.CustomerID <= 0 {
		return Quotation{}, fmt.Errorf("%w: customer required", ErrValidation)
	}
	if err := validateLines(input.Lines); err != nil {
		return Quotation{}, err
	}
	quoteDate := input.QuoteDate
	if quoteDate.IsZero() {
		quoteDate = s.now()
	}
	if input.ValidUntil.IsZero() {
		return Quotation{}, fmt.Errorf("%w: valid until required", ErrValidation)
	}
	if dateOf(input.ValidUntil).Before(dateOf(quoteDate)) {
		return Quotation{}, fmt.Errorf("%w: valid until precedes quote date", ErrValidation)
	}

	lines := buildLines(input.Lines)
	quotation := Quotation{
		Number:      strings.TrimSpace(input.Number),
		CustomerID:  input.CustomerID,
		QuoteDate:   quoteDate,
		ValidUntil:  input.ValidUntil,
		Status:      QuotationStatusDraft,
		TotalAmount: sumLines(lines),
		Notes:       strings.TrimSpace(input.Notes),
		CreatedBy:   shared.ActorID(ctx),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if quotation.Number == "" {
			number, err := tx.NextNumber(ctx, "QT", quotation.QuoteDate)
			if err != nil {
				return err
			}
			quotation.Number = number
		}
		id, err := tx.Insert(ctx, quotation)
		if err != nil {
			return err
		}
		quotation.ID = id
		for i := range lines {
			lines[i].QuotationID = id
		}
		return tx.InsertLines(ctx, id, lines)
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("create quotation: %w", err)
	}
	quotation.Lines = lines
	s.recordAudit(ctx, quotation, "QUOTATION_CREATE", map[string]any{
		"number": quotation.Number,
		"total":  quotation.TotalAmount.String(),
	})
	s.bump(ctx)
	return quotation, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Quotation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// ReplaceLines swaps the lines of a draft quotation.
func (s *Service) ReplaceLines(ctx context.Context, id int64, inputs []LineInput) (Quotation, error) {
	if err := validateLines(inputs); err != nil {
		return Quotation{}, err
	}
	var quotation Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		quotation, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if quotation.Status != QuotationStatusDraft {
			return fmt.Errorf("%w: lines are locked in status %s", ErrInvalidState, quotation.Status)
		}
		lines := buildLines(inputs)
		for i := range lines {
			lines[i].QuotationID = id
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, id, lines); err != nil {
			return err
		}
		quotation.Lines = lines
		quotation.TotalAmount = sumLines(lines)
		return tx.UpdateTotal(ctx, id, quotation.TotalAmount)
	})
	if err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, quotation, "QUOTATION_LINES_REPLACE", map[string]any{
		"lines": len(quotation.Lines),
		"total": quotation.TotalAmount.String(),
	})
	s.bump(ctx)
	return quotation, nil
}

// Send marks the quotation sent and queues the customer email once the status
// change has committed. When the task cannot be queued the quotation goes
// back to draft and the error is returned, so the caller can send again.
func (s *Service) Send(ctx context.Context, id int64) (Quotation, error) {
	if s.mailer == nil || s.customers == nil {
		return Quotation{}, fmt.Errorf("quotation email not configured")
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if !current.Status.CanMoveTo(QuotationStatusSent) {
		return Quotation{}, fmt.Errorf("%w: cannot send from %s", ErrInvalidState, current.Status)
	}
	customer, err := s.customers.Get(ctx, current.CustomerID)
	if err != nil {
		return Quotation{}, err
	}
	email := strings.TrimSpace(customer.Email)
	if email == "" {
		return Quotation{}, ErrNoEmail
	}

	sentAt := s.now()
	quotation, err := s.transition(ctx, id, QuotationStatusSent, func(_ context.Context, q *Quotation, change *StatusChange) error {
		change.SentTo = email
		change.SentAt = &sentAt
		q.SentTo = email
		q.SentAt = &sentAt
		return nil
	}, map[string]any{"to": email})
	if err != nil {
		return Quotation{}, err
	}
	if err := s.mailer.EnqueueQuotationEmail(ctx, emailPayload(quotation, customer)); err != nil {
		s.logger.Error("queue quotation email", slog.Int64("quotation_id", id), slog.Any("error", err))
		s.revertSend(context.WithoutCancel(ctx), quotation)
		return Quotation{}, fmt.Errorf("queue quotation email: %w", err)
	}
	return quotation, nil
}

// revertSend puts a quotation whose email was never queued back into draft.
func (s *Service) revertSend(ctx context.Context, q Quotation) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ClearSent(ctx, q.ID)
	})
	if err != nil {
		s.logger.Error("revert unsent quotation", slog.Int64("quotation_id", q.ID), slog.Any("error", err))
		return
	}
	s.recordAudit(ctx, q, "QUOTATION_SEND_REVERTED", map[string]any{"to": q.SentTo})
	s.bump(ctx)
}

// Accept records the customer's acceptance while the quotation is valid.
func (s *Service) Accept(ctx context.Context, id int64) (Quotation, error) {
	today := dateOf(s.now())
	return s.transition(ctx, id, QuotationStatusAccepted, func(_ context.Context, q *Quotation, _ *StatusChange) error {
		if today.After(dateOf(q.ValidUntil)) {
			return fmt.Errorf("%w: valid until %s", ErrExpired, q.ValidUntil.Format("2006-01-02"))
		}
		return nil
	}, nil)
}

// Reject closes a sent quotation with an optional reason.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (Quotation, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, id, QuotationStatusRejected, func(_ context.Context, q *Quotation, change *StatusChange) error {
		change.RejectionReason = reason
		q.RejectionReason = reason
		return nil
	}, map[string]any{"reason": reason})
}

// Convert opens a pending sales order with the quotation lines and links it.
// The quotation row stays locked while the order is created so a concurrent
// conversion waits and then fails the state check.
func (s *Service) Convert(ctx context.Context, id, warehouseID int64) (Quotation, orders.Order, error) {
	if s.orders == nil {
		return Quotation{}, orders.Order{}, fmt.Errorf("order service not configured")
	}
	if warehouseID <= 0 {
		return Quotation{}, orders.Order{}, fmt.Errorf("%w: warehouse required", ErrValidation)
	}
	var order orders.Order
	quotation, err := s.transition(ctx, id, QuotationStatusConverted, func(ctx context.Context, q *Quotation, change *StatusChange) error {
		input := orders.CreateInput{
			Kind:           orders.KindSales,
			CounterpartyID: q.CustomerID,
			WarehouseID:    warehouseID,
			OrderDate:      s.now(),
			SourceRef:      q.Number,
			Notes:          q.Notes,
		}
		for _, line := range q.Lines {
			input.Lines = append(input.Lines, orders.LineInput{
				ItemID:    line.ItemID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			})
		}
		var err error
		order, err = s.orders.Create(ctx, input)
		if err != nil {
			return err
		}
		change.OrderID = &order.ID
		q.OrderID = &order.ID
		return nil
	}, nil)
	if err != nil {
		if order.ID != 0 {
			s.logger.Error("quotation conversion left an unlinked order",
				slog.Int64("quotation_id", id),
				slog.Int64("order_id", order.ID),
				slog.Any("error", err))
		}
		return Quotation{}, orders.Order{}, err
	}
	return quotation, order, nil
}

type transitionHook func(ctx context.Context, q *Quotation, change *StatusChange) error

func (s *Service) transition(ctx context.Context, id int64, target QuotationStatus, hook transitionHook, meta map[string]any) (Quotation, error) {
	var quotation Quotation
	var from QuotationStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		quotation, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = quotation.Status
		if !from.CanMoveTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, target)
		}
		change := StatusChange{Status: target}
		if hook != nil {
			if err := hook(ctx, &quotation, &change); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, change); err != nil {
			return err
		}
		quotation.Status = target
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["from"] = string(from)
	meta["to"] = string(target)
	if quotation.OrderID != nil {
		meta["order_id"] = *quotation.OrderID
	}
	s.logger.Info("quotation status changed",
		slog.Int64("quotation_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(target)))
	s.recordAudit(ctx, quotation, "QUOTATION_"+strings.ToUpper(string(target)), meta)
	s.bump(ctx)
	return quotation, nil
}

func emailPayload(q Quotation, customer customers.Customer) jobs.QuotationEmailPayload {
	payload := jobs.QuotationEmailPayload{
		QuotationID:  q.ID,
		Number:       q.Number,
		To:           strings.TrimSpace(customer.Email),
		CustomerName: customer.Name,
		QuoteDate:    q.QuoteDate,
		ValidUntil:   q.ValidUntil,
		Total:        q.TotalAmount,
		Notes:        q.Notes,
	}
	for _, line := range q.Lines {
		description := line.Description
		if description == "" {
			description = "Item #" + strconv.FormatInt(line.ItemID, 10)
		}
		payload.Lines = append(payload.Lines, jobs.QuotationEmailLine{
			Description: description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
	}
	return payload
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	for i, line := range lines {
		if line.ItemID <= 0 {
			return fmt.Errorf("%w: line %d: item required", ErrValidation, i+1)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d: quantity must be greater than zero", ErrValidation, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d: unit price must not be negative", ErrValidation, i+1)
		}
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) recordAudit(ctx context.Context, q Quotation, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "quotation",
		EntityID: strconv.FormatInt(q.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("quotation audit failed", slog.Int64("quotation_id", q.ID), slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump failed", slog.Any("error", err))
	}
}
