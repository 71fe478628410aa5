package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-smb/internal/dashboard"
	"github.com/odyssey-erp/odyssey-smb/internal/inventory"
	"github.com/odyssey-erp/odyssey-smb/internal/masterdata"
	"github.com/odyssey-erp/odyssey-smb/internal/observability"
	"github.com/odyssey-erp/odyssey-smb/internal/orders"
	"github.com/odyssey-erp/odyssey-smb/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-smb/internal/procurement"
	"github.com/odyssey-erp/odyssey-smb/internal/rbac"
	"github.com/odyssey-erp/odyssey-smb/internal/roles"
	"github.com/odyssey-erp/odyssey-smb/internal/sales/quotations"
	"github.com/odyssey-erp/odyssey-smb/internal/users"
	"github.com/odyssey-erp/odyssey-smb/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	MasterDataHandler    *masterdata.Handler
	InventoryHandler     *inventory.Handler
	SalesOrderHandler    *orders.Handler
	PurchaseOrderHandler *orders.Handler
	QuotationHandler     *quotations.Handler
	ProcurementHandler   *procurement.Handler
	DashboardHandler     *dashboard.Handler
	UsersHandler         *users.Handler
	RolesHandler         *roles.Handler
	PermissionsHandler   *rbac.PermissionsHandler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.SalesOrderHandler != nil {
		r.Route("/sales/orders", params.SalesOrderHandler.MountRoutes)
	}
	if params.QuotationHandler != nil {
		r.Route("/sales/quotations", params.QuotationHandler.MountRoutes)
	}
	if params.PurchaseOrderHandler != nil {
		r.Route("/purchase/orders", params.PurchaseOrderHandler.MountRoutes)
	}
	if params.ProcurementHandler != nil {
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	}
	if params.DashboardHandler != nil {
		r.Route("/dashboard", params.DashboardHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
