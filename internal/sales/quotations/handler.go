package quotations

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
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
		Status: QuotationStatus(q.Get("status")),
	}
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: customer_id must be numeric", ErrValidation))
			return
		}
		filter.CustomerID = id
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list quotations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(list, filter.ListFilter, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	quotation, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuotationRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	input := CreateInput{
		Number:     req.Number,
		CustomerID: req.CustomerID,
		ValidUntil: req.ValidUntil.UTC(),
		Notes:      req.Notes,
		Lines:      toLineInputs(req.Lines),
	}
	if req.QuoteDate != nil {
		input.QuoteDate = req.QuoteDate.UTC()
	}
	quotation, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quotation)
}

func (h *Handler) ReplaceLines(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req replaceLinesRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	quotation, err := h.service.ReplaceLines(r.Context(), id, toLineInputs(req.Lines))
	if err != nil {
		h.fail(w, "replace quotation lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	quotation, err := h.service.Send(r.Context(), id)
	if err != nil {
		h.fail(w, "send quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	quotation, err := h.service.Accept(r.Context(), id)
	if err != nil {
		h.fail(w, "accept quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 && !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	quotation, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, "reject quotation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req convertRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	quotation, order, err := h.service.Convert(r.Context(), id, req.WarehouseID)
	if err != nil {
		h.fail(w, "convert quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"quotation": quotation,
		"order":     order,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
