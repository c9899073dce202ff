package catalog

import (
	"github.com/gofrs/uuid"
)

// Product is the subset of the catalog product the order flow reads.
// The catalog is owned by the back-office; this service never writes it.
type Product struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`
	CostPrice int64     `json:"cost_price" db:"cost_price"`
	IsActive  bool      `json:"is_active" db:"is_active"`
}

type Variant struct {
	ID                uuid.UUID `json:"id" db:"id"`
	ProductID         uuid.UUID `json:"product_id" db:"product_id"`
	PriceOverride     *int64    `json:"price_override" db:"price_override"`
	CostPriceOverride *int64    `json:"cost_price_override" db:"cost_price_override"`
	IsActive          bool      `json:"is_active" db:"is_active"`
}
