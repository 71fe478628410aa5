package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView))
		r.Get("/items", h.listItems)
		r.Get("/items/low-stock", h.lowStock)
		r.Get("/items/{id}", h.getItem)
		r.Get("/transactions", h.listTransactions)
		r.Get("/totals", h.totals)
		r.Post("/availability", h.availability)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryEdit))
		r.Post("/items", h.createItem)
		r.Put("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.deleteItem)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryPost))
		r.Post("/transactions", h.recordTransaction)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryExport))
		r.Get("/export.xlsx", h.export)
	})
}

type itemRequest struct {
	Code      string              `json:"code" validate:"required,max=64"`
	Name      string              `json:"name" validate:"required,max=200"`
	Unit      string              `json:"unit" validate:"omitempty,max=16"`
	Category  string              `json:"category" validate:"omitempty,max=100"`
	MinStock  decimal.NullDecimal `json:"min_stock"`
	BasePrice decimal.NullDecimal `json:"base_price"`
}

func (req itemRequest) input() ItemInput {
	return ItemInput{
		Code:      req.Code,
		Name:      req.Name,
		Unit:      req.Unit,
		Category:  req.Category,
		MinStock:  req.MinStock,
		BasePrice: req.BasePrice,
	}
}

type transactionRequest struct {
	ItemID         int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID    int64           `json:"warehouse_id" validate:"required,gt=0"`
	Type           TxType          `json:"type" validate:"required,oneof=RECEIPT ISSUE"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TxDate         *time.Time      `json:"tx_date"`
	Reference      string          `json:"reference" validate:"omitempty,max=64"`
	Notes          string          `json:"notes" validate:"omitempty,max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"omitempty,max=128"`
}

type availabilityRequest struct {
	WarehouseID int64 `json:"warehouse_id" validate:"required,gt=0"`
	Lines       []struct {
		ItemID   int64           `json:"item_id" validate:"required,gt=0"`
		Quantity decimal.Decimal `json:"quantity"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page, limit := httpx.PageParams(r)
	q := r.URL.Query()
	filter := ItemFilter{
		ListFilter: shared.ListFilter{
			Page:    page,
			Limit:   limit,
			Search:  q.Get("q"),
			SortBy:  q.Get("sort"),
			SortDir: q.Get("dir"),
		},
		Category:     q.Get("category"),
		LowStockOnly: q.Get("low_stock") == "true",
		WarehouseID:  queryInt(r, "warehouse_id"),
	}
	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, filter.ListFilter, total))
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id, queryInt(r, "warehouse_id"))
	if err != nil {
		h.fail(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), req.input())
	if err != nil {
		h.fail(w, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req itemRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.fail(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit := httpx.PageParams(r)
	q := r.URL.Query()
	filter := TransactionFilter{
		ListFilter:  shared.ListFilter{Page: page, Limit: limit, SortBy: q.Get("sort"), SortDir: q.Get("dir")},
		ItemID:      queryInt(r, "item_id"),
		WarehouseID: queryInt(r, "warehouse_id"),
		Type:        TxType(q.Get("type")),
	}
	var err error
	if filter.From, err = queryDate(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, total, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(rows, filter.ListFilter, total))
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	input := TransactionInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Type:           req.Type,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		Reference:      req.Reference,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.TxDate != nil {
		input.TxDate = req.TxDate.UTC()
	}
	tx, err := h.service.RecordTransaction(r.Context(), input)
	if err != nil {
		h.fail(w, "record transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	reqs := make([]Requirement, 0, len(req.Lines))
	for _, line := range req.Lines {
		reqs = append(reqs, Requirement{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	result, err := h.service.CheckAvailability(r.Context(), req.WarehouseID, reqs)
	if err != nil {
		h.fail(w, "availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": result})
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context())
	if err != nil {
		h.fail(w, "inventory totals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "stock-"+time.Now().UTC().Format("20060102")+".xlsx"))
	if err := h.service.ExportStock(r.Context(), w, queryInt(r, "warehouse_id")); err != nil {
		h.logger.Error("export stock", slog.Any("error", err))
		w.Header().Del("Content-Disposition")
		httpx.RespondError(w, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func queryInt(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrValidation, key)
	}
	return &t, nil
}
