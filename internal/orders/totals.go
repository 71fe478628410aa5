package orders

import "github.com/shopspring/decimal"

// DefaultSanityLimit is the stored total above which an order is treated as
// corrupt even when it matches its lines.
var DefaultSanityLimit = decimal.New(1, 12)

// LineAmount computes quantity × unit price.
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// BuildLines numbers inputs from 1 and fills amounts.
func BuildLines(inputs []LineInput) []Line {
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		lines = append(lines, Line{
			LineNo:    i + 1,
			ItemID:    in.ItemID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Amount:    LineAmount(in.Quantity, in.UnitPrice),
		})
	}
	return lines
}

// SumLines totals the line amounts, recomputing each amount from quantity
// and price.
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineAmount(line.Quantity, line.UnitPrice))
	}
	return total
}

// ResolveTotal returns the trustworthy total for an order. A stored value
// that disagrees with the lines or exceeds limit is replaced by the line sum
// and reported as corrupt.
func ResolveTotal(stored decimal.Decimal, lines []Line, limit decimal.Decimal) (decimal.Decimal, bool) {
	computed := SumLines(lines)
	if !stored.Equal(computed) {
		return computed, true
	}
	if limit.IsPositive() && stored.GreaterThan(limit) {
		return computed, true
	}
	return stored, false
}
