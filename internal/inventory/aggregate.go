package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// fallbackMargin is applied to the last receipt cost when an item has no
// stored base price.
var fallbackMargin = decimal.RequireFromString("1.10")

// LedgerEntry is the aggregator's view of one ledger row. Quantity and
// UnitCost are nullable because legacy rows may lack them.
type LedgerEntry struct {
	ItemID      int64               `db:"item_id"`
	WarehouseID int64               `db:"warehouse_id"`
	Type        TxType              `db:"tx_type"`
	Quantity    decimal.NullDecimal `db:"quantity"`
	UnitCost    decimal.NullDecimal `db:"unit_cost"`
	TxDate      time.Time           `db:"tx_date"`
}

// ItemRef carries the stored item attributes the aggregator needs.
type ItemRef struct {
	ItemID    int64
	MinStock  decimal.NullDecimal
	BasePrice decimal.NullDecimal
}

// StockMetrics is the derived stock projection of one item.
type StockMetrics struct {
	ItemID             int64           `json:"item_id"`
	CurrentStock       decimal.Decimal `json:"current_stock"`
	LastCost           decimal.Decimal `json:"last_cost"`
	AvgCost            decimal.Decimal `json:"avg_cost"`
	StockValue         decimal.Decimal `json:"stock_value"`
	EffectiveBasePrice decimal.Decimal `json:"effective_base_price"`
	MinStock           decimal.Decimal `json:"min_stock"`
	IsLowStock         bool            `json:"is_low_stock"`
	ReceiptCount       int             `json:"receipt_count"`
	LastReceiptAt      *time.Time      `json:"last_receipt_at,omitempty"`
}

// DataIssue describes a ledger row whose numeric field was unusable. The
// field contributed zero to the result.
type DataIssue struct {
	ItemID int64
	Index  int
	Field  string
	Reason string
}

// AggregateOptions scopes the aggregation.
type AggregateOptions struct {
	// WarehouseID limits the ledger to one warehouse when non-zero.
	WarehouseID int64
}

type accumulator struct {
	received     decimal.Decimal
	issued       decimal.Decimal
	costSum      decimal.Decimal
	receiptCount int
	lastCost     decimal.Decimal
	lastDate     time.Time
	hasReceipt   bool
}

// Aggregate computes stock metrics for each item from the ledger entries.
// Entries must be given in insertion order: among receipts sharing the
// latest date, the one appearing last supplies LastCost. Entries for items
// outside items are ignored. The result is a pure function of the inputs.
func Aggregate(items []ItemRef, entries []LedgerEntry, opts AggregateOptions) (map[int64]StockMetrics, []DataIssue) {
	accs := make(map[int64]*accumulator, len(items))
	for _, item := range items {
		accs[item.ItemID] = &accumulator{}
	}

	var issues []DataIssue
	for i, entry := range entries {
		if opts.WarehouseID != 0 && entry.WarehouseID != opts.WarehouseID {
			continue
		}
		acc, ok := accs[entry.ItemID]
		if !ok {
			continue
		}
		qty, qtyIssue := usableAmount(entry.Quantity, true)
		if qtyIssue != "" {
			issues = append(issues, DataIssue{ItemID: entry.ItemID, Index: i, Field: "quantity", Reason: qtyIssue})
		}
		switch entry.Type {
		case TxReceipt:
			cost, costIssue := usableAmount(entry.UnitCost, false)
			if costIssue != "" {
				issues = append(issues, DataIssue{ItemID: entry.ItemID, Index: i, Field: "unit_cost", Reason: costIssue})
			}
			acc.received = acc.received.Add(qty)
			acc.costSum = acc.costSum.Add(cost)
			acc.receiptCount++
			if !acc.hasReceipt || !entry.TxDate.Before(acc.lastDate) {
				acc.lastCost = cost
				acc.lastDate = entry.TxDate
				acc.hasReceipt = true
			}
		case TxIssue:
			acc.issued = acc.issued.Add(qty)
		default:
			issues = append(issues, DataIssue{ItemID: entry.ItemID, Index: i, Field: "tx_type", Reason: "unknown type " + string(entry.Type)})
		}
	}

	out := make(map[int64]StockMetrics, len(items))
	for _, item := range items {
		out[item.ItemID] = accs[item.ItemID].metrics(item)
	}
	return out, issues
}

// AggregateItem is Aggregate for a single item.
func AggregateItem(item ItemRef, entries []LedgerEntry, opts AggregateOptions) (StockMetrics, []DataIssue) {
	result, issues := Aggregate([]ItemRef{item}, entries, opts)
	return result[item.ItemID], issues
}

// EffectiveBasePrice returns the stored price when positive, otherwise the
// last cost plus the fallback margin rounded half-up to a whole unit.
func EffectiveBasePrice(stored decimal.NullDecimal, lastCost decimal.Decimal) decimal.Decimal {
	if stored.Valid && stored.Decimal.IsPositive() {
		return stored.Decimal
	}
	if lastCost.IsPositive() {
		return lastCost.Mul(fallbackMargin).Round(0)
	}
	return decimal.Zero
}

func (a *accumulator) metrics(item ItemRef) StockMetrics {
	current := a.received.Sub(a.issued)
	avg := decimal.Zero
	if a.receiptCount > 0 {
		avg = a.costSum.Div(decimal.NewFromInt(int64(a.receiptCount)))
	}
	minStock := decimal.Zero
	if item.MinStock.Valid {
		minStock = item.MinStock.Decimal
	}
	m := StockMetrics{
		ItemID:             item.ItemID,
		CurrentStock:       current,
		LastCost:           a.lastCost,
		AvgCost:            avg,
		StockValue:         current.Mul(a.lastCost),
		EffectiveBasePrice: EffectiveBasePrice(item.BasePrice, a.lastCost),
		MinStock:           minStock,
		IsLowStock:         current.LessThan(minStock),
		ReceiptCount:       a.receiptCount,
	}
	if a.hasReceipt {
		at := a.lastDate
		m.LastReceiptAt = &at
	}
	return m
}

func usableAmount(v decimal.NullDecimal, mustBePositive bool) (decimal.Decimal, string) {
	if !v.Valid {
		return decimal.Zero, "missing"
	}
	if v.Decimal.IsNegative() {
		return decimal.Zero, "negative"
	}
	if mustBePositive && v.Decimal.IsZero() {
		return decimal.Zero, "zero"
	}
	return v.Decimal, ""
}
