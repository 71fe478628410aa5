package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotationEmail delivers a quotation to the customer.
	TaskQuotationEmail = "quotation:email"
	// TaskLowStockScan reports items below their minimum stock.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskOrderTotalIntegrity compares stored order totals with their lines.
	TaskOrderTotalIntegrity = "orders:total_integrity"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// QuotationEmailPayload is everything needed to render and send a quotation
// without reading the database again.
type QuotationEmailPayload struct {
	QuotationID  int64                `json:"quotation_id"`
	Number       string               `json:"number"`
	To           string               `json:"to"`
	CustomerName string               `json:"customer_name"`
	QuoteDate    time.Time            `json:"quote_date"`
	ValidUntil   time.Time            `json:"valid_until"`
	Lines        []QuotationEmailLine `json:"lines"`
	Total        decimal.Decimal      `json:"total"`
	Notes        string               `json:"notes,omitempty"`
}

// QuotationEmailLine is one rendered row of the quotation table.
type QuotationEmailLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// ScanPayload carries scheduling metadata for periodic jobs.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewQuotationEmailTask constructs the email task.
func NewQuotationEmailTask(payload QuotationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationEmail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewScanTask constructs a payload-only periodic task of the given type.
func NewScanTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func decodeScanPayload(t *asynq.Task) (ScanPayload, error) {
	var payload ScanPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}
