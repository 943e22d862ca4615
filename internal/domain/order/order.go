// Package order holds the immutable order record and its read-side
// projections. Orders are created exactly once by a successful checkout and
// never mutated afterwards; the ledger exposes no write operation besides
// the append performed inside the purchase transaction.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/product"
)

// ErrNotFound is returned when an order does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("order not found")

// Order is a completed purchase. TotalPrice is the price snapshot taken at
// purchase time; later product price changes do not affect it.
type Order struct {
	ID         string
	UserID     string
	CartID     string
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// View joins an order with the purchased line items of its cart and a
// snapshot of each referenced product.
type View struct {
	Order Order
	Items []ItemView
}

// ItemView is one purchased line item with its product snapshot.
type ItemView struct {
	Quantity int
	Status   cart.ItemStatus
	Product  product.Snapshot
}

// Ledger is the append-only order store. The append itself happens inside
// the purchase transaction (checkout.PurchaseTx); this interface covers the
// read side.
type Ledger interface {
	// GetView returns the order with its purchased items, scoped to the
	// owning user. Returns ErrNotFound otherwise.
	GetView(ctx context.Context, userID, orderID string) (*View, error)

	// ListViews returns all of the user's orders, newest first.
	ListViews(ctx context.Context, userID string) ([]View, error)
}

// Service exposes the order ledger read operations.
type Service struct {
	ledger Ledger
}

// NewService creates an order read service over the given ledger.
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// Get returns one of the user's orders with its line items.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*View, error) {
	v, err := s.ledger.GetView(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	return v, nil
}

// List returns all of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	views, err := s.ledger.ListViews(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return views, nil
}
