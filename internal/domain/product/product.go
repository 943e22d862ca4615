package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for product lookups.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInactive is returned when a product exists but is not purchasable.
	ErrInactive = errors.New("product is inactive")
)

// Status describes whether a product can be added to carts.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Product is a catalog item. Quantity is the authoritative available stock;
// Version guards every stock mutation (see inventory.Accessor).
type Product struct {
	ID          string
	Title       string
	Description string
	Price       decimal.Decimal
	Quantity    int
	Version     int64
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Purchasable reports whether the product may be placed in a cart.
func (p Product) Purchasable() bool {
	return p.Status == StatusActive
}

// Snapshot is the subset of product fields frozen into cart views and order
// projections.
type Snapshot struct {
	ID          string
	Title       string
	Description string
	Price       decimal.Decimal
}

// Snapshot returns the projection fields of the product.
func (p Product) Snapshot() Snapshot {
	return Snapshot{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
	}
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
