package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/checkout"
	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/order"
	"github.com/valyx/checkout/internal/domain/product"
)

const (
	getActiveCartForUpdateSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE user_id = $1 AND status = 'active'
		FOR UPDATE`

	getActiveItemsSQL = `SELECT ` + lineItemColumns + ` FROM cart_items
		WHERE cart_id = $1 AND status = 'active'
		ORDER BY created_at`

	// Ordered by id so concurrent purchases lock product rows in the same
	// sequence and cannot deadlock each other.
	getProductsForUpdateSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	decrementStockSQL = `UPDATE products
		SET quantity = quantity - $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3 AND quantity >= $2`

	markItemsPurchasedSQL = `UPDATE cart_items
		SET status = 'purchased', updated_at = now()
		WHERE cart_id = $1 AND id = ANY($2) AND status = 'active'`

	createOrderSQL = `INSERT INTO orders (id, user_id, cart_id, total_price)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	closeCartSQL = `UPDATE carts
		SET status = 'purchased', updated_at = now()
		WHERE id = $1 AND status = 'active'`
)

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore implements checkout.Store backed by PostgreSQL. The purchase
// transaction relies on row locks (cart and product rows FOR UPDATE) plus
// version-conditional updates, so the default isolation level suffices.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// InPurchaseTx runs fn inside a single transaction; serialization failures
// and deadlocks surface as inventory.ErrConflict.
func (s *CheckoutStore) InPurchaseTx(ctx context.Context, fn func(tx checkout.PurchaseTx) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&purchaseTx{tx: tx})
	})
	if err != nil {
		return asConflict(err)
	}
	return nil
}

// purchaseTx implements checkout.PurchaseTx over a single pgx transaction.
type purchaseTx struct {
	tx pgx.Tx
}

func (t *purchaseTx) ActiveCartForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := t.tx.Query(ctx, getActiveCartForUpdateSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "locking active cart")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoActiveCart
		}
		return nil, errors.Wrap(err, "locking active cart")
	}
	return &c, nil
}

func (t *purchaseTx) ActiveItems(ctx context.Context, cartID string) ([]cart.LineItem, error) {
	rows, err := t.tx.Query(ctx, getActiveItemsSQL, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "getting active items")
	}
	return pgx.CollectRows(rows, scanLineItem)
}

func (t *purchaseTx) ProductsForUpdate(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := t.tx.Query(ctx, getProductsForUpdateSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "locking products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (t *purchaseTx) DecrementStock(ctx context.Context, productID string, qty int, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, qty, expectedVersion)
	if err != nil {
		return errors.Wrapf(asConflict(err), "decrementing stock for product %q", productID)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrConflict
	}
	return nil
}

func (t *purchaseTx) MarkItemsPurchased(ctx context.Context, cartID string, itemIDs []string) error {
	tag, err := t.tx.Exec(ctx, markItemsPurchasedSQL, cartID, itemIDs)
	if err != nil {
		return errors.Wrap(asConflict(err), "marking items purchased")
	}
	if tag.RowsAffected() != int64(len(itemIDs)) {
		return inventory.ErrConflict
	}
	return nil
}

func (t *purchaseTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, createOrderSQL,
		o.ID, o.UserID, o.CartID, o.TotalPrice,
	).Scan(&o.CreatedAt)
	if err != nil {
		return errors.Wrapf(asConflict(err), "creating order %q", o.ID)
	}
	return nil
}

func (t *purchaseTx) CloseCart(ctx context.Context, cartID string) error {
	tag, err := t.tx.Exec(ctx, closeCartSQL, cartID)
	if err != nil {
		return errors.Wrap(asConflict(err), "closing cart")
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrConflict
	}
	return nil
}
