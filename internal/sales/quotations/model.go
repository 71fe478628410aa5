package quotations

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "draft"
	QuotationStatusSent      QuotationStatus = "sent"
	QuotationStatusAccepted  QuotationStatus = "accepted"
	QuotationStatusRejected  QuotationStatus = "rejected"
	QuotationStatusConverted QuotationStatus = "converted"
)

var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:    {QuotationStatusSent},
	QuotationStatusSent:     {QuotationStatusAccepted, QuotationStatusRejected},
	QuotationStatusAccepted: {QuotationStatusConverted},
}

// IsValid reports whether s is a known status.
func (s QuotationStatus) IsValid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted,
		QuotationStatusRejected, QuotationStatusConverted:
		return true
	}
	return false
}

// CanMoveTo reports whether the quotation workflow allows s -> next.
func (s QuotationStatus) CanMoveTo(next QuotationStatus) bool {
	for _, candidate := range quotationTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

var (
	ErrNotFound     = fmt.Errorf("quotation not found: %w", httpx.ErrNotFound)
	ErrValidation   = fmt.Errorf("quotation: %w", httpx.ErrValidation)
	ErrInvalidState = fmt.Errorf("quotation state does not allow this operation: %w", httpx.ErrUnprocessable)
	ErrDuplicate    = fmt.Errorf("quotation number already used: %w", httpx.ErrDuplicate)
	ErrNoEmail      = fmt.Errorf("customer has no email address: %w", httpx.ErrUnprocessable)
	ErrExpired      = fmt.Errorf("quotation validity has expired: %w", httpx.ErrUnprocessable)
)

type Quotation struct {
	ID              int64           `json:"id" db:"id"`
	Number          string          `json:"number" db:"number"`
	CustomerID      int64           `json:"customer_id" db:"customer_id"`
	QuoteDate       time.Time       `json:"quote_date" db:"quote_date"`
	ValidUntil      time.Time       `json:"valid_until" db:"valid_until"`
	Status          QuotationStatus `json:"status" db:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	SentTo          string          `json:"sent_to,omitempty" db:"sent_to"`
	SentAt          *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	RejectionReason string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	OrderID         *int64          `json:"order_id,omitempty" db:"order_id"`
	CreatedBy       int64           `json:"created_by" db:"created_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Lines           []QuotationLine `json:"lines,omitempty" db:"-"`
}

type QuotationLine struct {
	ID          int64           `json:"id" db:"id"`
	QuotationID int64           `json:"quotation_id" db:"quotation_id"`
	LineNo      int             `json:"line_no" db:"line_no"`
	ItemID      int64           `json:"item_id" db:"item_id"`
	Description string          `json:"description,omitempty" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
}

// LineInput is the caller supplied part of a quotation line.
type LineInput struct {
	ItemID      int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateInput describes a new draft quotation.
type CreateInput struct {
	Number     string
	CustomerID int64
	QuoteDate  time.Time
	ValidUntil time.Time
	Notes      string
	Lines      []LineInput
}

// StatusChange carries the columns written alongside a status move.
type StatusChange struct {
	Status          QuotationStatus
	SentTo          string
	SentAt          *time.Time
	RejectionReason string
	OrderID         *int64
}

type ListFilter struct {
	shared.ListFilter
	CustomerID int64
	Status     QuotationStatus
}

// buildLines numbers inputs from 1 and fills amounts.
func buildLines(inputs []LineInput) []QuotationLine {
	lines := make([]QuotationLine, 0, len(inputs))
	for i, in := range inputs {
		lines = append(lines, QuotationLine{
			LineNo:      i + 1,
			ItemID:      in.ItemID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      in.Quantity.Mul(in.UnitPrice),
		})
	}
	return lines
}

func sumLines(lines []QuotationLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Quantity.Mul(line.UnitPrice))
	}
	return total
}
