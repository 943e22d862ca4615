package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for cart operations.
var (
	// ErrNoActiveCart is returned when an operation requires an active cart
	// and the user has none.
	ErrNoActiveCart = errors.New("no active cart")
	// ErrAlreadyInCart is returned when adding a product that already has an
	// active line item in the cart.
	ErrAlreadyInCart = errors.New("product already in cart")
	// ErrItemNotInCart is returned when updating a product that has no active
	// line item in the user's cart.
	ErrItemNotInCart = errors.New("product not in cart")
	// ErrItemNotRemovable is returned when removing a line item that is
	// missing, already removed, or not removable from its current state.
	ErrItemNotRemovable = errors.New("line item cannot be removed")
)

// InvalidQuantityError indicates a requested quantity outside the allowed
// range for a product: negative, zero on add, or above the available stock.
type InvalidQuantityError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s: %d available",
		e.Requested, e.ProductID, e.Available)
}

// InvalidTransitionError indicates an attempted status change the transition
// table forbids. Seeing one means a store invariant was violated.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}
