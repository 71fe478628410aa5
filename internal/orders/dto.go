package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type lineRequest struct {
	ItemID    int64           `json:"item_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	Number         string        `json:"number" validate:"omitempty,max=40"`
	CounterpartyID int64         `json:"counterparty_id" validate:"required,gt=0"`
	WarehouseID    int64         `json:"warehouse_id" validate:"required,gt=0"`
	OrderDate      *time.Time    `json:"order_date"`
	SourceRef      string        `json:"source_ref" validate:"omitempty,max=64"`
	Notes          string        `json:"notes" validate:"omitempty,max=1000"`
	Lines          []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type replaceLinesRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateLineRequest struct {
	Quantity  *decimal.Decimal `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
}

type orderResponse struct {
	Order
	AllowedTransitions []Status `json:"allowed_transitions"`
}

func toLineInputs(reqs []lineRequest) []LineInput {
	lines := make([]LineInput, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, LineInput{ItemID: r.ItemID, Quantity: r.Quantity, UnitPrice: r.UnitPrice})
	}
	return lines
}

func newOrderResponse(order Order) orderResponse {
	return orderResponse{Order: order, AllowedTransitions: AllowedTransitions(order.Status)}
}
