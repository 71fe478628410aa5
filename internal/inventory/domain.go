package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// TxType enumerates ledger movements.
type TxType string

const (
	// TxReceipt increases stock (goods received).
	TxReceipt TxType = "RECEIPT"
	// TxIssue decreases stock (goods shipped or consumed).
	TxIssue TxType = "ISSUE"
)

// IsValid reports whether t is a known movement type.
func (t TxType) IsValid() bool {
	return t == TxReceipt || t == TxIssue
}

var (
	// ErrItemNotFound indicates the item does not exist.
	ErrItemNotFound = fmt.Errorf("item not found: %w", httpx.ErrNotFound)
	// ErrDuplicateCode indicates an item code clash.
	ErrDuplicateCode = fmt.Errorf("item code already exists: %w", httpx.ErrDuplicate)
	// ErrItemInUse indicates the item still has ledger history.
	ErrItemInUse = fmt.Errorf("item has stock transactions: %w", httpx.ErrConflict)
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than zero: %w", httpx.ErrValidation)
	// ErrInvalidUnitCost indicates a negative cost.
	ErrInvalidUnitCost = fmt.Errorf("unit cost must not be negative: %w", httpx.ErrValidation)
	// ErrValidation wraps other input errors.
	ErrValidation = fmt.Errorf("inventory: %w", httpx.ErrValidation)
	// ErrUnknownReference indicates a missing item or warehouse.
	ErrUnknownReference = fmt.Errorf("unknown item or warehouse: %w", httpx.ErrValidation)
	// ErrInsufficientStock indicates an issue larger than available stock.
	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", httpx.ErrConflict)
	// ErrAlreadyPosted indicates a movement batch was posted before.
	ErrAlreadyPosted = fmt.Errorf("movement already posted: %w", httpx.ErrConflict)
)

// Item is an inventory master record. MinStock and BasePrice are optional.
type Item struct {
	ID        int64               `json:"id" db:"id"`
	Code      string              `json:"code" db:"code"`
	Name      string              `json:"name" db:"name"`
	Unit      string              `json:"unit" db:"unit"`
	Category  string              `json:"category,omitempty" db:"category"`
	MinStock  decimal.NullDecimal `json:"min_stock" db:"min_stock"`
	BasePrice decimal.NullDecimal `json:"base_price" db:"base_price"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" db:"updated_at"`
}

// Ref returns the aggregator view of the item.
func (i Item) Ref() ItemRef {
	return ItemRef{ItemID: i.ID, MinStock: i.MinStock, BasePrice: i.BasePrice}
}

// ItemView is an item together with its derived stock metrics.
type ItemView struct {
	Item
	Stock StockMetrics `json:"stock"`
}

// ItemInput carries editable item fields.
type ItemInput struct {
	Code      string
	Name      string
	Unit      string
	Category  string
	MinStock  decimal.NullDecimal
	BasePrice decimal.NullDecimal
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	shared.ListFilter
	Category     string
	LowStockOnly bool
	WarehouseID  int64
}

// Transaction is an append-only ledger row.
type Transaction struct {
	ID          int64               `json:"id" db:"id"`
	ItemID      int64               `json:"item_id" db:"item_id"`
	WarehouseID int64               `json:"warehouse_id" db:"warehouse_id"`
	Type        TxType              `json:"type" db:"tx_type"`
	Quantity    decimal.NullDecimal `json:"quantity" db:"quantity"`
	UnitCost    decimal.NullDecimal `json:"unit_cost" db:"unit_cost"`
	TxDate      time.Time           `json:"tx_date" db:"tx_date"`
	Reference   string              `json:"reference,omitempty" db:"reference"`
	Notes       string              `json:"notes,omitempty" db:"notes"`
	CreatedBy   int64               `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// TransactionInput describes a single ledger posting.
type TransactionInput struct {
	ItemID         int64
	WarehouseID    int64
	Type           TxType
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	TxDate         time.Time
	Reference      string
	Notes          string
	IdempotencyKey string
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	shared.ListFilter
	ItemID      int64
	WarehouseID int64
	Type        TxType
	From        *time.Time
	To          *time.Time
}

// MovementLine is one line of a MovementBatch.
type MovementLine struct {
	ItemID   int64
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

// MovementBatch posts several ledger rows of one type atomically, e.g. when
// an order is shipped or received.
type MovementBatch struct {
	WarehouseID    int64
	Type           TxType
	TxDate         time.Time
	Reference      string
	Notes          string
	IdempotencyKey string
	Lines          []MovementLine
}

// Requirement is a quantity needed from stock.
type Requirement struct {
	ItemID   int64
	Quantity decimal.Decimal
}

// Availability compares a requirement with current stock.
type Availability struct {
	ItemID    int64           `json:"item_id"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
	Shortage  decimal.Decimal `json:"shortage"`
	Oversold  bool            `json:"oversold"`
}

// Sufficient reports whether the requirement can be met.
func (a Availability) Sufficient() bool {
	return !a.Shortage.IsPositive()
}

// Totals summarises the whole inventory.
type Totals struct {
	Items      int             `json:"items"`
	LowStock   int             `json:"low_stock"`
	StockValue decimal.Decimal `json:"stock_value"`
}
