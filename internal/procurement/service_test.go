package procurement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type memoryProcRepo struct {
	prs        map[int64]PurchaseRequest
	approvals  []shared.ApprovalLog
	nextID     int64
	nextLineID int64
	sequences  map[string]int64
}

type memoryProcTx struct {
	repo      *memoryProcRepo
	prs       map[int64]PurchaseRequest
	approvals []shared.ApprovalLog
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{prs: make(map[int64]PurchaseRequest), sequences: make(map[string]int64)}
}

func clonePR(pr PurchaseRequest) PurchaseRequest {
	pr.Lines = append([]PRLine(nil), pr.Lines...)
	return pr
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := make(map[int64]PurchaseRequest, len(r.prs))
	for id, pr := range r.prs {
		staged[id] = clonePR(pr)
	}
	tx := &memoryProcTx{repo: r, prs: staged, approvals: append([]shared.ApprovalLog(nil), r.approvals...)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.prs = tx.prs
	r.approvals = tx.approvals
	return nil
}

func (r *memoryProcRepo) GetPR(_ context.Context, id int64) (PurchaseRequest, error) {
	pr, ok := r.prs[id]
	if !ok {
		return PurchaseRequest{}, ErrNotFound
	}
	return clonePR(pr), nil
}

func (r *memoryProcRepo) ListPRs(_ context.Context, filter ListFilter) ([]PurchaseRequest, int, error) {
	var out []PurchaseRequest
	for _, pr := range r.prs {
		if filter.Status != "" && pr.Status != filter.Status {
			continue
		}
		out = append(out, clonePR(pr))
	}
	return out, len(out), nil
}

func (r *memoryProcRepo) List(_ context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, log := range r.approvals {
		if log.Module == module && log.RefID == ref {
			out = append(out, log)
		}
	}
	return out, nil
}

func (t *memoryProcTx) GetForUpdate(_ context.Context, id int64) (PurchaseRequest, error) {
	pr, ok := t.prs[id]
	if !ok {
		return PurchaseRequest{}, ErrNotFound
	}
	return clonePR(pr), nil
}

func (t *memoryProcTx) CreatePR(_ context.Context, pr PurchaseRequest) (int64, error) {
	t.repo.nextID++
	pr.ID = t.repo.nextID
	pr.Lines = nil
	t.prs[pr.ID] = pr
	return pr.ID, nil
}

func (t *memoryProcTx) InsertLines(_ context.Context, prID int64, lines []PRLine) error {
	pr := t.prs[prID]
	for _, line := range lines {
		t.repo.nextLineID++
		line.ID = t.repo.nextLineID
		pr.Lines = append(pr.Lines, line)
	}
	t.prs[prID] = pr
	return nil
}

func (t *memoryProcTx) NextNumber(_ context.Context, docType string, date time.Time) (string, error) {
	key := docType + date.Format("200601")
	t.repo.sequences[key]++
	return shared.FormatDocumentNumber(docType, date, t.repo.sequences[key]), nil
}

func (t *memoryProcTx) UpdateStatus(_ context.Context, id int64, decision Decision) error {
	pr, ok := t.prs[id]
	if !ok {
		return ErrNotFound
	}
	pr.Status = decision.Status
	if decision.DecidedBy > 0 {
		by, at := decision.DecidedBy, decision.DecidedAt
		pr.DecidedBy, pr.DecidedAt, pr.DecisionNote = &by, &at, decision.Note
	}
	if decision.VendorID != nil {
		pr.VendorID = decision.VendorID
	}
	if decision.OrderID != nil {
		pr.OrderID = decision.OrderID
	}
	t.prs[id] = pr
	return nil
}

func (t *memoryProcTx) RecordApproval(_ context.Context, log shared.ApprovalLog) error {
	t.approvals = append(t.approvals, log)
	return nil
}

type recordingOrders struct {
	inputs []orders.CreateInput
}

func (o *recordingOrders) Create(_ context.Context, input orders.CreateInput) (orders.Order, error) {
	o.inputs = append(o.inputs, input)
	return orders.Order{ID: 500 + int64(len(o.inputs)), Kind: input.Kind, Status: orders.StatusPending}, nil
}

const (
	requesterID int64 = 11
	approverID  int64 = 12
)

type fixture struct {
	svc    *Service
	repo   *memoryProcRepo
	orders *recordingOrders
}

func newFixture() fixture {
	repo := newMemoryProcRepo()
	ord := &recordingOrders{}
	svc := NewService(repo, ServiceDeps{
		History: repo,
		Orders:  ord,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	now := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return fixture{svc: svc, repo: repo, orders: ord}
}

func as(userID int64) context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{UserID: userID})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f fixture) submitted(t *testing.T, vendorID *int64) PurchaseRequest {
	t.Helper()
	pr, err := f.svc.CreatePurchaseRequest(as(requesterID), CreatePRInput{
		VendorID: vendorID,
		Note:     "restock",
		Lines: []PRLineInput{
			{ItemID: 1, Quantity: dec("10"), EstimatedPrice: dec("1200")},
			{ItemID: 2, Quantity: dec("2.5"), EstimatedPrice: dec("400")},
		},
	})
	require.NoError(t, err)
	pr, err = f.svc.SubmitPurchaseRequest(as(requesterID), pr.ID)
	require.NoError(t, err)
	return pr
}

func TestCreatePurchaseRequest(t *testing.T) {
	f := newFixture()
	pr, err := f.svc.CreatePurchaseRequest(as(requesterID), CreatePRInput{
		Lines: []PRLineInput{{ItemID: 1, Quantity: dec("3"), EstimatedPrice: dec("250.5")}},
	})
	require.NoError(t, err)
	require.Equal(t, PRStatusDraft, pr.Status)
	require.Equal(t, requesterID, pr.RequestedBy)
	require.Equal(t, "751.5", pr.EstimatedTotal.String())
	require.Equal(t, "PR-2405-0001", pr.Number)

	next, err := f.svc.CreatePurchaseRequest(as(requesterID), CreatePRInput{
		Lines: []PRLineInput{{ItemID: 1, Quantity: dec("1"), EstimatedPrice: dec("1")}},
	})
	require.NoError(t, err)
	require.Equal(t, "PR-2405-0002", next.Number)

	_, err = f.svc.CreatePurchaseRequest(context.Background(), CreatePRInput{
		Lines: []PRLineInput{{ItemID: 1, Quantity: dec("1")}},
	})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = f.svc.CreatePurchaseRequest(as(requesterID), CreatePRInput{})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreatePurchaseRequest(as(requesterID), CreatePRInput{
		Lines: []PRLineInput{{ItemID: 1, Quantity: dec("0"), EstimatedPrice: dec("1")}},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestApproveFlowRecordsHistory(t *testing.T) {
	f := newFixture()
	pr := f.submitted(t, nil)
	require.Equal(t, PRStatusSubmitted, pr.Status)

	approved, err := f.svc.ApprovePurchaseRequest(as(approverID), pr.ID, "ok")
	require.NoError(t, err)
	require.Equal(t, PRStatusApproved, approved.Status)
	require.Equal(t, approverID, *approved.DecidedBy)

	history, err := f.svc.History(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, shared.ApprovalSubmit, history[0].Action)
	require.Equal(t, requesterID, history[0].ActorID)
	require.Equal(t, shared.ApprovalApprove, history[1].Action)
	require.Equal(t, "ok", history[1].Note)
	require.Equal(t, shared.ApprovalRef(ApprovalModule, pr.ID), history[1].RefID)
}

func TestRequesterCannotApproveOwnRequest(t *testing.T) {
	f := newFixture()
	pr := f.submitted(t, nil)

	_, err := f.svc.ApprovePurchaseRequest(as(requesterID), pr.ID, "")
	require.ErrorIs(t, err, ErrSelfApproval)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	stored, err := f.svc.GetPurchaseRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, PRStatusSubmitted, stored.Status)
}

func TestRejectRequiresNote(t *testing.T) {
	f := newFixture()
	pr := f.submitted(t, nil)

	_, err := f.svc.RejectPurchaseRequest(as(approverID), pr.ID, "   ")
	require.ErrorIs(t, err, httpx.ErrValidation)

	rejected, err := f.svc.RejectPurchaseRequest(as(approverID), pr.ID, "budget frozen")
	require.NoError(t, err)
	require.Equal(t, PRStatusRejected, rejected.Status)
	require.Equal(t, "budget frozen", rejected.DecisionNote)

	_, err = f.svc.ApprovePurchaseRequest(as(approverID), pr.ID, "")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitOnlyFromDraft(t *testing.T) {
	f := newFixture()
	pr := f.submitted(t, nil)
	_, err := f.svc.SubmitPurchaseRequest(as(requesterID), pr.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.SubmitPurchaseRequest(as(requesterID), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConvertNeedsVendor(t *testing.T) {
	f := newFixture()
	pr := f.submitted(t, nil)
	_, err := f.svc.ApprovePurchaseRequest(as(approverID), pr.ID, "")
	require.NoError(t, err)

	_, _, err = f.svc.ConvertPurchaseRequest(as(approverID), pr.ID, ConvertInput{WarehouseID: 1})
	require.ErrorIs(t, err, ErrVendorRequired)
	require.Empty(t, f.orders.inputs)

	converted, order, err := f.svc.ConvertPurchaseRequest(as(approverID), pr.ID, ConvertInput{VendorID: 8, WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, PRStatusConverted, converted.Status)
	require.Equal(t, order.ID, *converted.OrderID)
	require.Equal(t, int64(8), *converted.VendorID)

	input := f.orders.inputs[0]
	require.Equal(t, orders.KindPurchase, input.Kind)
	require.Equal(t, int64(8), input.CounterpartyID)
	require.Equal(t, pr.Number, input.SourceRef)
	require.Equal(t, "1200", input.Lines[0].UnitPrice.String())
	require.Equal(t, "2.5", input.Lines[1].Quantity.String())
}

func TestConvertUsesProposedVendor(t *testing.T) {
	f := newFixture()
	vendor := int64(5)
	pr := f.submitted(t, &vendor)

	_, _, err := f.svc.ConvertPurchaseRequest(as(approverID), pr.ID, ConvertInput{WarehouseID: 1})
	require.ErrorIs(t, err, ErrInvalidState, "must be approved first")

	_, err = f.svc.ApprovePurchaseRequest(as(approverID), pr.ID, "")
	require.NoError(t, err)
	_, _, err = f.svc.ConvertPurchaseRequest(as(approverID), pr.ID, ConvertInput{WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(5), f.orders.inputs[0].CounterpartyID)
}
