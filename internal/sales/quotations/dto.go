package quotations

import (
	"time"

	"github.com/shopspring/decimal"
)

type quotationLineRequest struct {
	ItemID      int64           `json:"item_id" validate:"required,gt=0"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createQuotationRequest struct {
	Number     string                 `json:"number" validate:"omitempty,max=40"`
	CustomerID int64                  `json:"customer_id" validate:"required,gt=0"`
	QuoteDate  *time.Time             `json:"quote_date"`
	ValidUntil time.Time              `json:"valid_until" validate:"required"`
	Notes      string                 `json:"notes" validate:"omitempty,max=1000"`
	Lines      []quotationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type replaceLinesRequest struct {
	Lines []quotationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type convertRequest struct {
	WarehouseID int64 `json:"warehouse_id" validate:"required,gt=0"`
}

func toLineInputs(reqs []quotationLineRequest) []LineInput {
	lines := make([]LineInput, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, LineInput{
			ItemID:      r.ItemID,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
		})
	}
	return lines
}
