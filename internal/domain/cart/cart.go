// Package cart holds the cart and line item entities and the line item
// manager service. A user has at most one active cart; line items are never
// hard-deleted, they move through an explicit status lifecycle instead.
package cart

import (
	"time"

	"github.com/valyx/checkout/internal/domain/product"
)

// Status is the lifecycle state of a cart.
type Status string

const (
	StatusActive    Status = "active"
	StatusPurchased Status = "purchased"
)

// cartTransitions is the allowed transition table for carts. Purchased is
// terminal.
var cartTransitions = map[Status][]Status{
	StatusActive: {StatusPurchased},
}

// CanTransition reports whether a cart may move from s to the given status.
func (s Status) CanTransition(to Status) bool {
	for _, t := range cartTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Cart is a user's current collection of line items. At most one cart per
// user is in StatusActive at any time.
type Cart struct {
	ID        string
	UserID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemStatus is the lifecycle state of a line item.
type ItemStatus string

const (
	ItemActive    ItemStatus = "active"
	ItemRemoved   ItemStatus = "removed"
	ItemPurchased ItemStatus = "purchased"
)

// itemTransitions is the allowed transition table for line items. Removal is
// reversible (a removed item is reactivated on a subsequent add); purchased
// is terminal.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemActive:  {ItemRemoved, ItemPurchased},
	ItemRemoved: {ItemActive},
}

// CanTransition reports whether a line item may move from s to the given
// status.
func (s ItemStatus) CanTransition(to ItemStatus) bool {
	for _, t := range itemTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// LineItem associates a product and quantity with a cart. The product is
// referenced, not owned; quantity is positive while the item is active and
// zero once removed via a quantity update.
type LineItem struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	Status    ItemStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// View is the read model returned by GetActiveCart: the cart (nil when the
// user has none) with its active line items and product snapshots.
type View struct {
	Cart  *Cart
	Items []ItemView
}

// ItemView pairs an active line item with a snapshot of its product.
type ItemView struct {
	Item    LineItem
	Product product.Snapshot
}
