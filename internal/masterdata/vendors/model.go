package vendors

import "time"

// Vendor is a supplier the business purchases from.
type Vendor struct {
	ID           int64     `json:"id" db:"id"`
	Code         string    `json:"code" db:"code"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email,omitempty" db:"email"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Address      string    `json:"address,omitempty" db:"address"`
	TaxID        string    `json:"tax_id,omitempty" db:"tax_id"`
	PaymentTerms int       `json:"payment_terms_days" db:"payment_terms_days"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type vendorRequest struct {
	Code         string `json:"code" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"omitempty,max=200"`
	Phone        string `json:"phone" validate:"omitempty,max=40"`
	Address      string `json:"address" validate:"omitempty,max=500"`
	TaxID        string `json:"tax_id" validate:"omitempty,max=40"`
	PaymentTerms int    `json:"payment_terms_days" validate:"gte=0,lte=365"`
	IsActive     *bool  `json:"is_active"`
}

func (r vendorRequest) toVendor() Vendor {
	v := Vendor{
		Code:         r.Code,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.Address,
		TaxID:        r.TaxID,
		PaymentTerms: r.PaymentTerms,
		IsActive:     true,
	}
	if r.IsActive != nil {
		v.IsActive = *r.IsActive
	}
	return v
}
