package warehouses

import "time"

// Warehouse is a stock location.
type Warehouse struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address,omitempty" db:"address"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type warehouseRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=200"`
	Address  string `json:"address" validate:"omitempty,max=500"`
	IsActive *bool  `json:"is_active"`
}

func (r warehouseRequest) toWarehouse() Warehouse {
	w := Warehouse{Code: r.Code, Name: r.Name, Address: r.Address, IsActive: true}
	if r.IsActive != nil {
		w.IsActive = *r.IsActive
	}
	return w
}
