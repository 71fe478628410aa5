package orders

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

type permissionSet struct {
	view, create, edit, status string
}

var kindPermissions = map[Kind]permissionSet{
	KindSales: {
		view:   shared.PermSalesOrderView,
		create: shared.PermSalesOrderCreate,
		edit:   shared.PermSalesOrderEdit,
		status: shared.PermSalesOrderStatus,
	},
	KindPurchase: {
		view:   shared.PermPurchaseOrderView,
		create: shared.PermPurchaseOrderCreate,
		edit:   shared.PermPurchaseOrderEdit,
		status: shared.PermPurchaseOrderStatus,
	},
}

// Handler serves one order kind; mount a handler per kind.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	kind    Kind
	perms   permissionSet
}

// NewHandler constructs the handler for kind.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, kind Kind) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, kind: kind, perms: kindPermissions[kind]}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(h.perms.view))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		if h.kind == KindSales {
			r.Get("/{id}/availability", h.availability)
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(h.perms.create))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(h.perms.edit))
		r.Put("/{id}/lines", h.replaceLines)
		r.Patch("/{id}/lines/{lineID}", h.updateLine)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(h.perms.status))
		r.Post("/{id}/status", h.changeStatus)
		r.Post("/{id}/actions/{action}", h.applyAction)
	})
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
		Kind:   h.kind,
		Status: Status(q.Get("status")),
	}
	if raw := q.Get("counterparty_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: counterparty_id must be numeric", ErrValidation))
			return
		}
		filter.CounterpartyID = id
	}
	orders, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(orders, filter.ListFilter, total))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.load(r, id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	input := CreateInput{
		Kind:           h.kind,
		Number:         req.Number,
		CounterpartyID: req.CounterpartyID,
		WarehouseID:    req.WarehouseID,
		SourceRef:      req.SourceRef,
		Notes:          req.Notes,
		Lines:          toLineInputs(req.Lines),
	}
	if req.OrderDate != nil {
		input.OrderDate = req.OrderDate.UTC()
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) replaceLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req replaceLinesRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, "replace lines", err)
		return
	}
	order, err := h.service.ReplaceLines(r.Context(), id, toLineInputs(req.Lines))
	if err != nil {
		h.fail(w, "replace lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	lineID, err := httpx.ParseID(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateLineRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, "update line", err)
		return
	}
	order, err := h.service.UpdateLine(r.Context(), id, lineID, LineUpdate{Quantity: req.Quantity, UnitPrice: req.UnitPrice})
	if err != nil {
		h.fail(w, "update line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, "change status", err)
		return
	}
	order, err := h.service.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, "change status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) applyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, "apply action", err)
		return
	}
	order, err := h.service.ApplyAction(r.Context(), id, Action(chi.URLParam(r, "action")))
	if err != nil {
		h.fail(w, "apply action", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Availability(r.Context(), id)
	if err != nil {
		h.fail(w, "order availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order_id": id, "lines": result})
}

// load fetches the order and hides orders of the other kind.
func (h *Handler) load(r *http.Request, id int64) (Order, error) {
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		return Order{}, err
	}
	if order.Kind != h.kind {
		return Order{}, ErrNotFound
	}
	return order, nil
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.String("kind", string(h.kind)), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
