package quotations

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
	"github.com/odyssey-erp/odyssey-smb/jobs"
)

type memoryRepo struct {
	quotations map[int64]Quotation
	nextID     int64
	nextLineID int64
	sequences  map[string]int64
	commitErr  error
}

type memoryTx struct {
	repo       *memoryRepo
	quotations map[int64]Quotation
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotations: map[int64]Quotation{}, sequences: map[string]int64{}}
}

func clone(q Quotation) Quotation {
	q.Lines = append([]QuotationLine(nil), q.Lines...)
	return q
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := make(map[int64]Quotation, len(r.quotations))
	for id, q := range r.quotations {
		staged[id] = clone(q)
	}
	if err := fn(ctx, &memoryTx{repo: r, quotations: staged}); err != nil {
		return err
	}
	if r.commitErr != nil {
		return r.commitErr
	}
	r.quotations = staged
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return Quotation{}, ErrNotFound
	}
	return clone(q), nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range r.quotations {
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out = append(out, clone(q))
	}
	return out, len(out), nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Quotation, error) {
	q, ok := t.quotations[id]
	if !ok {
		return Quotation{}, ErrNotFound
	}
	return clone(q), nil
}

func (t *memoryTx) Insert(_ context.Context, q Quotation) (int64, error) {
	for _, existing := range t.quotations {
		if existing.Number == q.Number {
			return 0, ErrDuplicate
		}
	}
	t.repo.nextID++
	q.ID = t.repo.nextID
	q.Lines = nil
	t.quotations[q.ID] = q
	return q.ID, nil
}

func (t *memoryTx) InsertLines(_ context.Context, quotationID int64, lines []QuotationLine) error {
	q := t.quotations[quotationID]
	for _, line := range lines {
		t.repo.nextLineID++
		line.ID = t.repo.nextLineID
		q.Lines = append(q.Lines, line)
	}
	t.quotations[quotationID] = q
	return nil
}

func (t *memoryTx) DeleteLines(_ context.Context, quotationID int64) error {
	q := t.quotations[quotationID]
	q.Lines = nil
	t.quotations[quotationID] = q
	return nil
}

func (t *memoryTx) UpdateTotal(_ context.Context, id int64, total decimal.Decimal) error {
	q := t.quotations[id]
	q.TotalAmount = total
	t.quotations[id] = q
	return nil
}

func (t *memoryTx) NextNumber(_ context.Context, docType string, date time.Time) (string, error) {
	key := docType + date.Format("200601")
	t.repo.sequences[key]++
	return shared.FormatDocumentNumber(docType, date, t.repo.sequences[key]), nil
}

func (t *memoryTx) ClearSent(_ context.Context, id int64) error {
	q, ok := t.quotations[id]
	if !ok || q.Status != QuotationStatusSent {
		return nil
	}
	q.Status = QuotationStatusDraft
	q.SentTo = ""
	q.SentAt = nil
	t.quotations[id] = q
	return nil
}

func (t *memoryTx) UpdateStatus(_ context.Context, id int64, change StatusChange) error {
	q, ok := t.quotations[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = change.Status
	if change.SentTo != "" {
		q.SentTo = change.SentTo
		q.SentAt = change.SentAt
	}
	if change.RejectionReason != "" {
		q.RejectionReason = change.RejectionReason
	}
	if change.OrderID != nil {
		q.OrderID = change.OrderID
	}
	t.quotations[id] = q
	return nil
}

type customerBook map[int64]customers.Customer

func (b customerBook) Get(_ context.Context, id int64) (customers.Customer, error) {
	c, ok := b[id]
	if !ok {
		return customers.Customer{}, httpx.ErrNotFound
	}
	return c, nil
}

type recordingMailer struct {
	sent []jobs.QuotationEmailPayload
	err  error
}

func (m *recordingMailer) EnqueueQuotationEmail(_ context.Context, payload jobs.QuotationEmailPayload) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, payload)
	return nil
}

type recordingOrders struct {
	inputs []orders.CreateInput
	err    error
}

func (o *recordingOrders) Create(_ context.Context, input orders.CreateInput) (orders.Order, error) {
	if o.err != nil {
		return orders.Order{}, o.err
	}
	o.inputs = append(o.inputs, input)
	return orders.Order{ID: int64(100 + len(o.inputs)), Kind: input.Kind, Status: orders.StatusPending, SourceRef: input.SourceRef}, nil
}

type fixture struct {
	svc    *Service
	repo   *memoryRepo
	mailer *recordingMailer
	orders *recordingOrders
	now    time.Time
}

func newFixture() fixture {
	repo := newMemoryRepo()
	mailer := &recordingMailer{}
	ord := &recordingOrders{}
	book := customerBook{
		1: {ID: 1, Name: "PT Maju", Email: "buyer@maju.example"},
		2: {ID: 2, Name: "No Mail Ltd"},
	}
	svc := NewService(repo, ServiceDeps{
		Customers: book,
		Mailer:    mailer,
		Orders:    ord,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return fixture{svc: svc, repo: repo, mailer: mailer, orders: ord, now: now}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f fixture) draft(t *testing.T, customerID int64) Quotation {
	t.Helper()
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{UserID: 7})
	q, err := f.svc.Create(ctx, CreateInput{
		CustomerID: customerID,
		ValidUntil: f.now.AddDate(0, 0, 14),
		Lines: []LineInput{
			{ItemID: 10, Description: "Steel bolt", Quantity: dec("4"), UnitPrice: dec("2500")},
			{ItemID: 11, Quantity: dec("1.5"), UnitPrice: dec("1000")},
		},
	})
	require.NoError(t, err)
	return q
}

func TestCreateComputesTotalAndDefaults(t *testing.T) {
	f := newFixture()
	q := f.draft(t, 1)

	require.Equal(t, QuotationStatusDraft, q.Status)
	require.Equal(t, "11500", q.TotalAmount.String())
	require.Equal(t, "QT-2403-0001", q.Number)
	require.Equal(t, "QT-2403-0002", f.draft(t, 1).Number)
	require.Equal(t, f.now, q.QuoteDate)
	require.Equal(t, int64(7), q.CreatedBy)
	require.Len(t, q.Lines, 2)
	require.Equal(t, 2, q.Lines[1].LineNo)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	valid := []LineInput{{ItemID: 1, Quantity: dec("1"), UnitPrice: dec("1")}}

	cases := map[string]CreateInput{
		"missing customer":    {ValidUntil: f.now, Lines: valid},
		"missing valid until": {CustomerID: 1, Lines: valid},
		"expired on creation": {CustomerID: 1, QuoteDate: f.now, ValidUntil: f.now.AddDate(0, 0, -1), Lines: valid},
		"no lines":            {CustomerID: 1, ValidUntil: f.now},
		"zero quantity":       {CustomerID: 1, ValidUntil: f.now, Lines: []LineInput{{ItemID: 1, Quantity: decimal.Zero, UnitPrice: dec("1")}}},
		"negative price":      {CustomerID: 1, ValidUntil: f.now, Lines: []LineInput{{ItemID: 1, Quantity: dec("1"), UnitPrice: dec("-1")}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, input)
			require.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestReplaceLinesOnlyWhileDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := f.draft(t, 1)

	updated, err := f.svc.ReplaceLines(ctx, q.ID, []LineInput{{ItemID: 12, Quantity: dec("3"), UnitPrice: dec("334")}})
	require.NoError(t, err)
	require.Equal(t, "1002", updated.TotalAmount.String())
	require.Len(t, updated.Lines, 1)

	_, err = f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	_, err = f.svc.ReplaceLines(ctx, q.ID, []LineInput{{ItemID: 12, Quantity: dec("1"), UnitPrice: dec("1")}})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSendEnqueuesEmailAndMarksSent(t *testing.T) {
	f := newFixture()
	q := f.draft(t, 1)

	sent, err := f.svc.Send(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSent, sent.Status)
	require.Equal(t, "buyer@maju.example", sent.SentTo)
	require.NotNil(t, sent.SentAt)

	require.Len(t, f.mailer.sent, 1)
	payload := f.mailer.sent[0]
	require.Equal(t, q.Number, payload.Number)
	require.Equal(t, "PT Maju", payload.CustomerName)
	require.Equal(t, "11500", payload.Total.String())
	require.Equal(t, "Steel bolt", payload.Lines[0].Description)
	require.Equal(t, "Item #11", payload.Lines[1].Description)

	stored, err := f.repo.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSent, stored.Status)

	_, err = f.svc.Send(context.Background(), q.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSendRequiresCustomerEmail(t *testing.T) {
	f := newFixture()
	q := f.draft(t, 2)

	_, err := f.svc.Send(context.Background(), q.ID)
	require.ErrorIs(t, err, ErrNoEmail)
	require.Empty(t, f.mailer.sent)
}

func TestSendQueueFailureKeepsDraft(t *testing.T) {
	f := newFixture()
	q := f.draft(t, 1)
	f.mailer.err = errors.New("redis down")

	_, err := f.svc.Send(context.Background(), q.ID)
	require.ErrorContains(t, err, "redis down")

	stored, err := f.repo.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusDraft, stored.Status)
	require.Empty(t, stored.SentTo)
	require.Nil(t, stored.SentAt)

	f.mailer.err = nil
	sent, err := f.svc.Send(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSent, sent.Status)
	require.Len(t, f.mailer.sent, 1)
}

func TestSendCommitFailureQueuesNoEmail(t *testing.T) {
	f := newFixture()
	q := f.draft(t, 1)
	f.repo.commitErr = errors.New("commit failed")

	_, err := f.svc.Send(context.Background(), q.ID)
	require.ErrorContains(t, err, "commit failed")
	require.Empty(t, f.mailer.sent)

	f.repo.commitErr = nil
	stored, err := f.repo.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusDraft, stored.Status)
}

func TestAcceptAndReject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Accept(ctx, f.draft(t, 1).ID)
	require.ErrorIs(t, err, ErrInvalidState, "draft cannot be accepted")

	accepted := f.draft(t, 1)
	_, err = f.svc.Send(ctx, accepted.ID)
	require.NoError(t, err)
	got, err := f.svc.Accept(ctx, accepted.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusAccepted, got.Status)

	rejected := f.draft(t, 1)
	_, err = f.svc.Send(ctx, rejected.ID)
	require.NoError(t, err)
	got, err = f.svc.Reject(ctx, rejected.ID, "  price too high ")
	require.NoError(t, err)
	require.Equal(t, QuotationStatusRejected, got.Status)
	require.Equal(t, "price too high", got.RejectionReason)

	_, err = f.svc.Accept(ctx, rejected.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAcceptAfterValidityExpires(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := f.draft(t, 1)
	_, err := f.svc.Send(ctx, q.ID)
	require.NoError(t, err)

	later := f.now.AddDate(0, 0, 15)
	f.svc.now = func() time.Time { return later }
	_, err = f.svc.Accept(ctx, q.ID)
	require.ErrorIs(t, err, ErrExpired)
}

func TestConvertCreatesPendingSalesOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := f.draft(t, 1)

	_, _, err := f.svc.Convert(ctx, q.ID, 3)
	require.ErrorIs(t, err, ErrInvalidState, "only accepted quotations convert")

	_, err = f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, q.ID)
	require.NoError(t, err)

	converted, order, err := f.svc.Convert(ctx, q.ID, 3)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusConverted, converted.Status)
	require.NotNil(t, converted.OrderID)
	require.Equal(t, order.ID, *converted.OrderID)

	require.Len(t, f.orders.inputs, 1)
	input := f.orders.inputs[0]
	require.Equal(t, orders.KindSales, input.Kind)
	require.Equal(t, int64(1), input.CounterpartyID)
	require.Equal(t, int64(3), input.WarehouseID)
	require.Equal(t, q.Number, input.SourceRef)
	require.Len(t, input.Lines, 2)
	require.Equal(t, "1.5", input.Lines[1].Quantity.String())

	_, _, err = f.svc.Convert(ctx, q.ID, 3)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, f.orders.inputs, 1)
}

func TestConvertOrderFailureKeepsAccepted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := f.draft(t, 1)
	_, err := f.svc.Send(ctx, q.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, q.ID)
	require.NoError(t, err)

	f.orders.err = orders.ErrUnknownReference
	_, _, err = f.svc.Convert(ctx, q.ID, 99)
	require.ErrorIs(t, err, orders.ErrUnknownReference)

	stored, err := f.repo.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusAccepted, stored.Status)
	require.Nil(t, stored.OrderID)
}

func TestStatusGraph(t *testing.T) {
	require.True(t, QuotationStatusDraft.CanMoveTo(QuotationStatusSent))
	require.True(t, QuotationStatusSent.CanMoveTo(QuotationStatusRejected))
	require.True(t, QuotationStatusAccepted.CanMoveTo(QuotationStatusConverted))
	require.False(t, QuotationStatusDraft.CanMoveTo(QuotationStatusAccepted))
	require.False(t, QuotationStatusRejected.CanMoveTo(QuotationStatusSent))
	require.False(t, QuotationStatusConverted.CanMoveTo(QuotationStatusAccepted))
	require.False(t, QuotationStatus("bogus").IsValid())
}
