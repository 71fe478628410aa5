package masterdata

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/vendors"
	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/warehouses"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
)

// Handler mounts the master data endpoints.
type Handler struct {
	customers  *customers.Handler
	vendors    *vendors.Handler
	warehouses *warehouses.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, services Services, rbac rbac.Middleware) *Handler {
	return &Handler{
		customers:  customers.NewHandler(logger, services.Customers, rbac),
		vendors:    vendors.NewHandler(logger, services.Vendors, rbac),
		warehouses: warehouses.NewHandler(logger, services.Warehouses, rbac),
	}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", h.customers.MountRoutes)
	r.Route("/vendors", h.vendors.MountRoutes)
	r.Route("/warehouses", h.warehouses.MountRoutes)
}
