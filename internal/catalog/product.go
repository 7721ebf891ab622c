package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrDuplicateProduct  = errors.New("product already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const DefaultCategory = "General"

// Product is an item on the canteen menu.
type Product struct {
	ID          uuid.UUID
	Name        string
	Category    string
	Description string
	ImageURL    string
	Price       money.Amount
	Stock       int64
	MinStock    int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LowStock reports whether the product is at or below its reorder level.
func (p *Product) LowStock() bool {
	return p.Stock <= p.MinStock
}
