package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/product"
)

// Tx is the set of store operations available inside a cart mutation
// transaction. Product reads lock the stock row so quantity validation and
// the line item write cannot race a concurrent checkout.
type Tx interface {
	// ProductForUpdate returns the product with its stock row locked for the
	// duration of the transaction. Returns product.ErrNotFound when absent.
	ProductForUpdate(ctx context.Context, productID string) (*product.Product, error)

	// ActiveCart returns the user's active cart, or ErrNoActiveCart.
	ActiveCart(ctx context.Context, userID string) (*Cart, error)

	// CreateCart inserts a new active cart. Returns inventory.ErrConflict
	// when another transaction created the user's active cart first.
	CreateCart(ctx context.Context, c *Cart) error

	// LineItem returns the line item for (cartID, productID): the active row
	// if one exists, otherwise the most recently removed row. Returns
	// ErrItemNotInCart when the product has never been in the cart.
	LineItem(ctx context.Context, cartID, productID string) (*LineItem, error)

	// LineItemByID returns a line item regardless of status, or
	// ErrItemNotInCart.
	LineItemByID(ctx context.Context, id string) (*LineItem, error)

	// CartByID returns a cart by its identifier, or ErrNoActiveCart style
	// lookup failure wrapped by the store.
	CartByID(ctx context.Context, id string) (*Cart, error)

	// InsertLineItem persists a new line item.
	InsertLineItem(ctx context.Context, li *LineItem) error

	// UpdateLineItem persists quantity and status changes to an existing row.
	UpdateLineItem(ctx context.Context, li *LineItem) error
}

// Store provides transactional access to carts plus the read-only view.
type Store interface {
	// WithinTx runs fn inside a single transaction, committing when fn
	// returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// ActiveCartView loads the user's active cart with its active line items
	// and product snapshots. Absent cart yields a View with a nil Cart.
	ActiveCartView(ctx context.Context, userID string) (*View, error)
}

// Service is the line item manager: every cart mutation goes through it.
// All operations take the acting user explicitly.
type Service struct {
	store Store
}

// NewService creates a line item manager over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// AddToCart places quantity units of a product into the user's active cart,
// creating the cart when absent. A removed line item for the same product is
// reactivated in place rather than duplicated; an active one is rejected
// with ErrAlreadyInCart.
func (s *Service) AddToCart(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{ProductID: productID, Requested: quantity}
	}

	return s.store.WithinTx(ctx, func(tx Tx) error {
		p, err := tx.ProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !p.Purchasable() {
			return product.ErrInactive
		}
		if quantity > p.Quantity {
			return &InvalidQuantityError{
				ProductID: productID,
				Requested: quantity,
				Available: p.Quantity,
			}
		}

		c, err := s.activeCartOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}

		li, err := tx.LineItem(ctx, c.ID, productID)
		switch {
		case errors.Is(err, ErrItemNotInCart):
			return tx.InsertLineItem(ctx, &LineItem{
				ID:        uuid.New().String(),
				CartID:    c.ID,
				ProductID: productID,
				Quantity:  quantity,
				Status:    ItemActive,
			})
		case err != nil:
			return err
		}

		if li.Status == ItemActive {
			return ErrAlreadyInCart
		}
		if !li.Status.CanTransition(ItemActive) {
			return &InvalidTransitionError{Entity: "line item", From: string(li.Status), To: string(ItemActive)}
		}

		li.Status = ItemActive
		li.Quantity = quantity
		return tx.UpdateLineItem(ctx, li)
	})
}

// activeCartOrCreate returns the user's active cart, creating one when
// absent. A concurrent create is recovered by re-reading: the partial unique
// index guarantees exactly one row wins.
func (s *Service) activeCartOrCreate(ctx context.Context, tx Tx, userID string) (*Cart, error) {
	c, err := tx.ActiveCart(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNoActiveCart) {
		return nil, err
	}

	c = &Cart{
		ID:     uuid.New().String(),
		UserID: userID,
		Status: StatusActive,
	}
	createErr := tx.CreateCart(ctx, c)
	if createErr == nil {
		return c, nil
	}
	if errors.Is(createErr, inventory.ErrConflict) {
		return tx.ActiveCart(ctx, userID)
	}
	return nil, createErr
}

// UpdateQuantity changes the quantity of an active line item. Zero removes
// the item (soft delete, quantity zeroed); any value above the product's
// available stock or below zero is rejected with InvalidQuantityError.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, newQuantity int) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		c, err := tx.ActiveCart(ctx, userID)
		if err != nil {
			return err
		}

		li, err := tx.LineItem(ctx, c.ID, productID)
		if err != nil {
			return err
		}
		if li.Status != ItemActive {
			return ErrItemNotInCart
		}

		p, err := tx.ProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if newQuantity < 0 || newQuantity > p.Quantity {
			return &InvalidQuantityError{
				ProductID: productID,
				Requested: newQuantity,
				Available: p.Quantity,
			}
		}

		if newQuantity == 0 {
			if !li.Status.CanTransition(ItemRemoved) {
				return &InvalidTransitionError{Entity: "line item", From: string(li.Status), To: string(ItemRemoved)}
			}
			li.Status = ItemRemoved
			li.Quantity = 0
			return tx.UpdateLineItem(ctx, li)
		}

		li.Quantity = newQuantity
		return tx.UpdateLineItem(ctx, li)
	})
}

// RemoveFromCart transitions a line item to removed. Removal of a missing,
// foreign, or already-removed item fails with ErrItemNotRemovable rather
// than succeeding silently.
func (s *Service) RemoveFromCart(ctx context.Context, userID, lineItemID string) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		li, err := tx.LineItemByID(ctx, lineItemID)
		if err != nil {
			if errors.Is(err, ErrItemNotInCart) {
				return ErrItemNotRemovable
			}
			return err
		}

		owner, err := tx.CartByID(ctx, li.CartID)
		if err != nil {
			return err
		}
		if owner.UserID != userID {
			// Do not reveal whether the item exists in someone else's cart.
			return ErrItemNotRemovable
		}

		if !li.Status.CanTransition(ItemRemoved) {
			return ErrItemNotRemovable
		}

		li.Status = ItemRemoved
		return tx.UpdateLineItem(ctx, li)
	})
}

// GetActiveCart returns the user's active cart with items and product
// snapshots. A user without a cart gets an empty view, not an error.
func (s *Service) GetActiveCart(ctx context.Context, userID string) (*View, error) {
	view, err := s.store.ActiveCartView(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart view")
	}
	return view, nil
}
