package masterdata

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/vendors"
	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/warehouses"
)

// CacheInvalidator is shared by every master data service.
type CacheInvalidator interface {
	customers.CacheInvalidator
}

// Services groups the master data services.
type Services struct {
	Customers  *customers.Service
	Vendors    *vendors.Service
	Warehouses *warehouses.Service
}

// NewServices builds customer, vendor and warehouse services on pool.
func NewServices(pool *pgxpool.Pool, cache CacheInvalidator, logger *slog.Logger) Services {
	return Services{
		Customers:  customers.NewService(customers.NewRepository(pool), cache, logger),
		Vendors:    vendors.NewService(vendors.NewRepository(pool), cache, logger),
		Warehouses: warehouses.NewService(warehouses.NewRepository(pool), cache, logger),
	}
}
