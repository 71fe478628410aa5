package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPR(ctx context.Context, id int64) (PurchaseRequest, error)
	ListPRs(ctx context.Context, filter ListFilter) ([]PurchaseRequest, int, error)
}

// HistoryPort reads approval history.
type HistoryPort interface {
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// OrderCreator opens the purchase order of a converted request.
type OrderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (orders.Order, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator is notified after writes.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service orchestrates purchase request flows.
type Service struct {
	repo    RepositoryPort
	history HistoryPort
	orders  OrderCreator
	audit   AuditPort
	cache   CacheInvalidator
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceDeps groups collaborators of Service.
type ServiceDeps struct {
	History HistoryPort
	Orders  OrderCreator
	Audit   AuditPort
	Cache   CacheInvalidator
	Logger  *slog.Logger
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		history: deps.History,
		orders:  deps.Orders,
		audit:   deps.Audit,
		cache:   deps.Cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreatePurchaseRequest persists a draft request owned by the current actor.
func (s *Service) CreatePurchaseRequest(ctx context.Context, input CreatePRInput) (PurchaseRequest, error) {
	actor, ok := shared.ActorFromContext(ctx)
	if !ok {
		return PurchaseRequest{}, shared.ErrActorRequired
	}
	if len(input.Lines) == 0 {
		return PurchaseRequest{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	for i, line := range input.Lines {
		if line.ItemID <= 0 {
			return PurchaseRequest{}, fmt.Errorf("%w: line %d: item required", ErrValidation, i+1)
		}
		if !line.Quantity.IsPositive() {
			return PurchaseRequest{}, fmt.Errorf("%w: line %d: quantity must be greater than zero", ErrValidation, i+1)
		}
		if line.EstimatedPrice.IsNegative() {
			return PurchaseRequest{}, fmt.Errorf("%w: line %d: estimated price must not be negative", ErrValidation, i+1)
		}
	}
	if input.VendorID != nil && *input.VendorID <= 0 {
		input.VendorID = nil
	}

	lines := buildLines(input.Lines)
	pr := PurchaseRequest{
		Number:         strings.TrimSpace(input.Number),
		RequestedBy:    actor.UserID,
		VendorID:       input.VendorID,
		NeededBy:       input.NeededBy,
		Status:         PRStatusDraft,
		Note:           strings.TrimSpace(input.Note),
		EstimatedTotal: estimatedTotal(lines),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if pr.Number == "" {
			number, err := tx.NextNumber(ctx, "PR", s.now())
			if err != nil {
				return err
			}
			pr.Number = number
		}
		prID, err := tx.CreatePR(ctx, pr)
		if err != nil {
			return err
		}
		pr.ID = prID
		for i := range lines {
			lines[i].PRID = prID
		}
		return tx.InsertLines(ctx, prID, lines)
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	pr.Lines = lines
	s.recordAudit(ctx, "PR_CREATE", pr.ID, map[string]any{
		"number":          pr.Number,
		"estimated_total": pr.EstimatedTotal.String(),
	})
	s.bump(ctx)
	return pr, nil
}

// GetPurchaseRequest loads a request with its lines.
func (s *Service) GetPurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.repo.GetPR(ctx, id)
}

// ListPurchaseRequests returns a page of requests.
func (s *Service) ListPurchaseRequests(ctx context.Context, filter ListFilter) ([]PurchaseRequest, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	return s.repo.ListPRs(ctx, filter)
}

// SubmitPurchaseRequest transitions PR to submitted.
func (s *Service) SubmitPurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.transition(ctx, id, PRStatusSubmitted, shared.ApprovalSubmit, "", nil)
}

// ApprovePurchaseRequest approves a submitted request. The requester may not
// approve their own request.
func (s *Service) ApprovePurchaseRequest(ctx context.Context, id int64, note string) (PurchaseRequest, error) {
	return s.transition(ctx, id, PRStatusApproved, shared.ApprovalApprove, note, nil)
}

// RejectPurchaseRequest declines a submitted request; a note is mandatory.
func (s *Service) RejectPurchaseRequest(ctx context.Context, id int64, note string) (PurchaseRequest, error) {
	if strings.TrimSpace(note) == "" {
		return PurchaseRequest{}, fmt.Errorf("%w: rejection note required", ErrValidation)
	}
	return s.transition(ctx, id, PRStatusRejected, shared.ApprovalReject, note, nil)
}

// ConvertPurchaseRequest opens a pending purchase order from an approved
// request and links it.
func (s *Service) ConvertPurchaseRequest(ctx context.Context, id int64, input ConvertInput) (PurchaseRequest, orders.Order, error) {
	if s.orders == nil {
		return PurchaseRequest{}, orders.Order{}, fmt.Errorf("order service not configured")
	}
	if input.WarehouseID <= 0 {
		return PurchaseRequest{}, orders.Order{}, fmt.Errorf("%w: warehouse required", ErrValidation)
	}
	var order orders.Order
	pr, err := s.transition(ctx, id, PRStatusConverted, "", "", func(ctx context.Context, pr *PurchaseRequest, decision *Decision) error {
		vendorID := input.VendorID
		if vendorID <= 0 && pr.VendorID != nil {
			vendorID = *pr.VendorID
		}
		if vendorID <= 0 {
			return ErrVendorRequired
		}
		create := orders.CreateInput{
			Kind:           orders.KindPurchase,
			CounterpartyID: vendorID,
			WarehouseID:    input.WarehouseID,
			OrderDate:      s.now(),
			SourceRef:      pr.Number,
			Notes:          pr.Note,
		}
		for _, line := range pr.Lines {
			create.Lines = append(create.Lines, orders.LineInput{
				ItemID:    line.ItemID,
				Quantity:  line.Quantity,
				UnitPrice: line.EstimatedPrice,
			})
		}
		var err error
		order, err = s.orders.Create(ctx, create)
		if err != nil {
			return err
		}
		decision.VendorID = &vendorID
		decision.OrderID = &order.ID
		pr.VendorID = &vendorID
		pr.OrderID = &order.ID
		return nil
	})
	if err != nil {
		if order.ID != 0 {
			s.logger.Error("purchase request conversion left an unlinked order",
				slog.Int64("pr_id", id),
				slog.Int64("order_id", order.ID),
				slog.Any("error", err))
		}
		return PurchaseRequest{}, orders.Order{}, err
	}
	return pr, order, nil
}

// History lists the approval entries of a request in time order.
func (s *Service) History(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.GetPR(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []shared.ApprovalLog{}, nil
	}
	return s.history.List(ctx, ApprovalModule, shared.ApprovalRef(ApprovalModule, id))
}

type transitionHook func(ctx context.Context, pr *PurchaseRequest, decision *Decision) error

func (s *Service) transition(ctx context.Context, id int64, target PRStatus, action shared.ApprovalAction, note string, hook transitionHook) (PurchaseRequest, error) {
	actor, ok := shared.ActorFromContext(ctx)
	if !ok {
		return PurchaseRequest{}, shared.ErrActorRequired
	}
	note = strings.TrimSpace(note)
	var pr PurchaseRequest
	var from PRStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		pr, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = pr.Status
		if !from.CanMoveTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, target)
		}
		if target == PRStatusApproved && pr.RequestedBy == actor.UserID {
			return ErrSelfApproval
		}
		decision := Decision{Status: target}
		if target == PRStatusApproved || target == PRStatusRejected {
			decision.DecidedBy = actor.UserID
			decision.DecidedAt = s.now()
			decision.Note = note
			pr.DecidedBy = &decision.DecidedBy
			pr.DecidedAt = &decision.DecidedAt
			pr.DecisionNote = note
		}
		if hook != nil {
			if err := hook(ctx, &pr, &decision); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, decision); err != nil {
			return err
		}
		if action != "" {
			if note == "" {
				note = fmt.Sprintf("PR %s %s", pr.Number, target)
			}
			err := tx.RecordApproval(ctx, shared.ApprovalLog{
				Module:  ApprovalModule,
				RefID:   shared.ApprovalRef(ApprovalModule, id),
				ActorID: actor.UserID,
				Action:  action,
				Note:    note,
				At:      s.now(),
			})
			if err != nil {
				return err
			}
		}
		pr.Status = target
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.logger.Info("purchase request status changed",
		slog.Int64("pr_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
		slog.Int64("actor_id", actor.UserID))
	meta := map[string]any{"from": string(from), "to": string(target)}
	if pr.OrderID != nil {
		meta["order_id"] = *pr.OrderID
	}
	s.recordAudit(ctx, "PR_"+strings.ToUpper(string(target)), id, meta)
	s.bump(ctx)
	return pr, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchase_request", EntityID: strconv.FormatInt(entityID, 10), Meta: meta})
	if err != nil {
		s.logger.Warn("procurement audit failed", slog.String("action", action), slog.Any("error", err))
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
