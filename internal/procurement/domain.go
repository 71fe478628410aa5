package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// ApprovalModule tags purchase request entries in the approvals table.
const ApprovalModule = "PR"

// Purchase request lifecycle statuses.
type PRStatus string

const (
	PRStatusDraft     PRStatus = "draft"
	PRStatusSubmitted PRStatus = "submitted"
	PRStatusApproved  PRStatus = "approved"
	PRStatusRejected  PRStatus = "rejected"
	PRStatusConverted PRStatus = "converted"
)

var prTransitions = map[PRStatus][]PRStatus{
	PRStatusDraft:     {PRStatusSubmitted},
	PRStatusSubmitted: {PRStatusApproved, PRStatusRejected},
	PRStatusApproved:  {PRStatusConverted},
}

// IsValid reports whether s is a known status.
func (s PRStatus) IsValid() bool {
	switch s {
	case PRStatusDraft, PRStatusSubmitted, PRStatusApproved, PRStatusRejected, PRStatusConverted:
		return true
	}
	return false
}

// CanMoveTo reports whether the workflow allows s -> next.
func (s PRStatus) CanMoveTo(next PRStatus) bool {
	for _, candidate := range prTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// PurchaseRequest domain model.
type PurchaseRequest struct {
	ID             int64           `json:"id" db:"id"`
	Number         string          `json:"number" db:"number"`
	RequestedBy    int64           `json:"requested_by" db:"requested_by"`
	VendorID       *int64          `json:"vendor_id,omitempty" db:"vendor_id"`
	NeededBy       *time.Time      `json:"needed_by,omitempty" db:"needed_by"`
	Status         PRStatus        `json:"status" db:"status"`
	Note           string          `json:"note,omitempty" db:"note"`
	EstimatedTotal decimal.Decimal `json:"estimated_total" db:"estimated_total"`
	DecidedBy      *int64          `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty" db:"decided_at"`
	DecisionNote   string          `json:"decision_note,omitempty" db:"decision_note"`
	OrderID        *int64          `json:"order_id,omitempty" db:"order_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	Lines          []PRLine        `json:"lines,omitempty" db:"-"`
}

// PRLine represents requested item.
type PRLine struct {
	ID             int64           `json:"id" db:"id"`
	PRID           int64           `json:"pr_id" db:"pr_id"`
	LineNo         int             `json:"line_no" db:"line_no"`
	ItemID         int64           `json:"item_id" db:"item_id"`
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	EstimatedPrice decimal.Decimal `json:"estimated_price" db:"estimated_price"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Note           string          `json:"note,omitempty" db:"note"`
}

// CreatePRInput describes creation payload.
type CreatePRInput struct {
	Number   string
	VendorID *int64
	NeededBy *time.Time
	Note     string
	Lines    []PRLineInput
}

// PRLineInput describes request line.
type PRLineInput struct {
	ItemID         int64
	Quantity       decimal.Decimal
	EstimatedPrice decimal.Decimal
	Note           string
}

// ConvertInput chooses where the resulting purchase order goes. VendorID
// overrides the vendor proposed on the request.
type ConvertInput struct {
	VendorID    int64
	WarehouseID int64
}

// Decision carries the columns written with a status change.
type Decision struct {
	Status    PRStatus
	DecidedBy int64
	DecidedAt time.Time
	Note      string
	VendorID  *int64
	OrderID   *int64
}

// ListFilter narrows purchase request listings.
type ListFilter struct {
	shared.ListFilter
	Status      PRStatus
	RequestedBy int64
}

var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("procurement: invalid state transition: %w", httpx.ErrUnprocessable)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("procurement: purchase request not found: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: %w", httpx.ErrValidation)
	// ErrSelfApproval blocks requesters from deciding their own request.
	ErrSelfApproval = fmt.Errorf("procurement: requester cannot approve own request: %w", httpx.ErrForbidden)
	// ErrVendorRequired is returned when converting without a vendor.
	ErrVendorRequired = fmt.Errorf("procurement: vendor required to convert: %w", httpx.ErrUnprocessable)
	// ErrDuplicate indicates the number is taken.
	ErrDuplicate = fmt.Errorf("procurement: purchase request number already used: %w", httpx.ErrDuplicate)
)

func buildLines(inputs []PRLineInput) []PRLine {
	lines := make([]PRLine, 0, len(inputs))
	for i, in := range inputs {
		lines = append(lines, PRLine{
			LineNo:         i + 1,
			ItemID:         in.ItemID,
			Quantity:       in.Quantity,
			EstimatedPrice: in.EstimatedPrice,
			Amount:         in.Quantity.Mul(in.EstimatedPrice),
			Note:           in.Note,
		})
	}
	return lines
}

func estimatedTotal(lines []PRLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Quantity.Mul(line.EstimatedPrice))
	}
	return total
}
