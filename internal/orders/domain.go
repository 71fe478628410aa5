package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// Kind discriminates the two order flavours.
type Kind string

const (
	// KindSales orders sell to a customer.
	KindSales Kind = "sales"
	// KindPurchase orders buy from a vendor.
	KindPurchase Kind = "purchase"
)

// IsValid reports whether k is known.
func (k Kind) IsValid() bool {
	return k == KindSales || k == KindPurchase
}

// NumberPrefix returns the document prefix for generated numbers.
func (k Kind) NumberPrefix() string {
	if k == KindPurchase {
		return "PO"
	}
	return "SO"
}

// Order is a sales or purchase order header with its lines.
type Order struct {
	ID             int64           `json:"id" db:"id"`
	Kind           Kind            `json:"kind" db:"kind"`
	Number         string          `json:"number" db:"number"`
	CounterpartyID int64           `json:"counterparty_id" db:"counterparty_id"`
	WarehouseID    int64           `json:"warehouse_id" db:"warehouse_id"`
	Status         Status          `json:"status" db:"status"`
	OrderDate      time.Time       `json:"order_date" db:"order_date"`
	SourceRef      string          `json:"source_ref,omitempty" db:"source_ref"`
	Notes          string          `json:"notes,omitempty" db:"notes"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	CreatedBy      int64           `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	Lines          []Line          `json:"lines,omitempty" db:"-"`
}

// Line is one item row of an order.
type Line struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"order_id" db:"order_id"`
	LineNo    int             `json:"line_no" db:"line_no"`
	ItemID    int64           `json:"item_id" db:"item_id"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
}

// LineInput is the caller supplied part of a line.
type LineInput struct {
	ItemID    int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateInput describes a new order.
type CreateInput struct {
	Kind           Kind
	Number         string
	CounterpartyID int64
	WarehouseID    int64
	OrderDate      time.Time
	SourceRef      string
	Notes          string
	Lines          []LineInput
}

// LineUpdate changes quantity and/or price of an existing line.
type LineUpdate struct {
	Quantity  *decimal.Decimal
	UnitPrice *decimal.Decimal
}

// ListFilter narrows order listings.
type ListFilter struct {
	shared.ListFilter
	Kind           Kind
	Status         Status
	CounterpartyID int64
}

// TotalMismatch is an order whose stored total disagrees with its lines.
type TotalMismatch struct {
	OrderID     int64           `db:"order_id"`
	Number      string          `db:"number"`
	StoredTotal decimal.Decimal `db:"stored_total"`
	LineTotal   decimal.Decimal `db:"line_total"`
}
