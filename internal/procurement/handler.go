package procurement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

// Handler manages purchase request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers purchase request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPurchaseRequestView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/history", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchaseRequestCreate))
		r.Post("/", h.create)
		r.Post("/{id}/submit", h.submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchaseRequestApprove))
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchaseRequestConvert))
		r.Post("/{id}/convert", h.convert)
	})
}

type prLineRequest struct {
	ItemID         int64           `json:"item_id" validate:"required,gt=0"`
	Quantity       decimal.Decimal `json:"quantity"`
	EstimatedPrice decimal.Decimal `json:"estimated_price"`
	Note           string          `json:"note" validate:"omitempty,max=500"`
}

type createPRRequest struct {
	Number   string          `json:"number" validate:"omitempty,max=40"`
	VendorID *int64          `json:"vendor_id" validate:"omitempty,gt=0"`
	NeededBy *time.Time      `json:"needed_by"`
	Note     string          `json:"note" validate:"omitempty,max=1000"`
	Lines    []prLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type decisionRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}

type convertRequest struct {
	VendorID    int64 `json:"vendor_id" validate:"omitempty,gt=0"`
	WarehouseID int64 `json:"warehouse_id" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit := httpx.PageParams(r)
	q := r.URL.Query()
	filter := ListFilter{
		ListFilter: shared.ListFilter{
			Page:    page,
			Limit:   limit,
			Search:  q.Get("q"),
			SortBy:  q.Get("sort"),
			SortDir: q.Get("dir"),
		},
		Status: PRStatus(q.Get("status")),
	}
	if q.Get("mine") == "true" {
		filter.RequestedBy = shared.ActorID(r.Context())
	}
	prs, total, err := h.service.ListPurchaseRequests(r.Context(), filter)
	if err != nil {
		h.fail(w, "list purchase requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(prs, filter.ListFilter, total))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, err := h.service.GetPurchaseRequest(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "purchase request history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pr_id": id, "history": logs})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPRRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	input := CreatePRInput{
		Number:   req.Number,
		VendorID: req.VendorID,
		NeededBy: req.NeededBy,
		Note:     req.Note,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PRLineInput{
			ItemID:         line.ItemID,
			Quantity:       line.Quantity,
			EstimatedPrice: line.EstimatedPrice,
			Note:           line.Note,
		})
	}
	pr, err := h.service.CreatePurchaseRequest(r.Context(), input)
	if err != nil {
		h.fail(w, "create purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pr)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, err := h.service.SubmitPurchaseRequest(r.Context(), id)
	if err != nil {
		h.fail(w, "submit purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req decisionRequest
	if r.ContentLength != 0 && !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	pr, err := h.service.ApprovePurchaseRequest(r.Context(), id, req.Note)
	if err != nil {
		h.fail(w, "approve purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req decisionRequest
	if r.ContentLength != 0 && !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	pr, err := h.service.RejectPurchaseRequest(r.Context(), id, req.Note)
	if err != nil {
		h.fail(w, "reject purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, pr)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req convertRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	pr, order, err := h.service.ConvertPurchaseRequest(r.Context(), id, ConvertInput{VendorID: req.VendorID, WarehouseID: req.WarehouseID})
	if err != nil {
		h.fail(w, "convert purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"purchase_request": pr, "order": order})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
