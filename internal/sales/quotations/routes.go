package quotations

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-smb/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotationView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationCreate))
		r.Post("/", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationEdit))
		r.Put("/{id}/lines", h.ReplaceLines)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationSend))
		r.Post("/{id}/send", h.Send)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationApprove))
		r.Post("/{id}/accept", h.Accept)
		r.Post("/{id}/reject", h.Reject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationConvert))
		r.Post("/{id}/convert", h.Convert)
	})
}
