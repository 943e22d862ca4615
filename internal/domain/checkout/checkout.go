// Package checkout converts a user's active cart into an order. Stock
// validation, stock decrement, line item and cart status transitions, total
// computation, and order creation all execute inside one store transaction
// so a failure at any step leaves no trace.
package checkout

import (
	"context"
	"fmt"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/order"
	"github.com/valyx/checkout/internal/domain/product"
)

// InsufficientStockError indicates a line item asks for more units than the
// product currently has. The purchase is aborted as a whole; nothing was
// decremented.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// PurchaseTx is the set of store operations available inside a purchase
// transaction. The cart and product rows stay locked until the transaction
// ends, so the validate-then-decrement sequence cannot interleave with a
// concurrent checkout or cart mutation.
type PurchaseTx interface {
	// ActiveCartForUpdate returns the user's active cart with its row locked,
	// or cart.ErrNoActiveCart.
	ActiveCartForUpdate(ctx context.Context, userID string) (*cart.Cart, error)

	// ActiveItems returns the cart's active line items.
	ActiveItems(ctx context.Context, cartID string) ([]cart.LineItem, error)

	// ProductsForUpdate returns the products with their stock rows locked.
	ProductsForUpdate(ctx context.Context, ids []string) ([]product.Product, error)

	// DecrementStock subtracts qty from the product's available quantity,
	// conditional on the row still being at expectedVersion and the result
	// staying non-negative. Returns inventory.ErrConflict otherwise.
	DecrementStock(ctx context.Context, productID string, qty int, expectedVersion int64) error

	// MarkItemsPurchased transitions the given active line items to purchased.
	MarkItemsPurchased(ctx context.Context, cartID string, itemIDs []string) error

	// CreateOrder appends the order record to the ledger.
	CreateOrder(ctx context.Context, o *order.Order) error

	// CloseCart transitions the cart from active to purchased. Returns
	// inventory.ErrConflict when the cart is no longer active.
	CloseCart(ctx context.Context, cartID string) error
}

// Store opens purchase transactions.
type Store interface {
	// InPurchaseTx runs fn inside a single transaction, committing when fn
	// returns nil and rolling back on any error. Serialization failures are
	// surfaced as inventory.ErrConflict.
	InPurchaseTx(ctx context.Context, fn func(tx PurchaseTx) error) error
}
