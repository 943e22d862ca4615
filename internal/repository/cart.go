package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/product"
)

const cartColumns = `id, user_id, status, created_at, updated_at`

const lineItemColumns = `id, cart_id, product_id, quantity, status, created_at, updated_at`

const (
	getProductForUpdateSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	getActiveCartSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE user_id = $1 AND status = 'active'`

	getCartByIDSQL = `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`

	// The partial unique index on (user_id) WHERE status = 'active' makes the
	// insert race-safe: the loser of a concurrent create affects zero rows.
	createCartSQL = `INSERT INTO carts (id, user_id, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING`

	// Active row first, then the most recently touched removed row, so a
	// previously removed item is reactivated instead of duplicated.
	getLineItemSQL = `SELECT ` + lineItemColumns + ` FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND status IN ('active', 'removed')
		ORDER BY (status = 'active') DESC, updated_at DESC
		LIMIT 1`

	getLineItemByIDSQL = `SELECT ` + lineItemColumns + ` FROM cart_items WHERE id = $1`

	insertLineItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity, status)
		VALUES ($1, $2, $3, $4, $5)`

	updateLineItemSQL = `UPDATE cart_items
		SET quantity = $2, status = $3, updated_at = now()
		WHERE id = $1`

	getActiveItemViewsSQL = `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.status,
			ci.created_at, ci.updated_at,
			p.id, p.title, p.description, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1 AND ci.status = 'active'
		ORDER BY ci.created_at`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// WithinTx runs fn inside a single transaction. Lost races (unique
// violations, serialization failures) surface as inventory.ErrConflict.
func (s *CartStore) WithinTx(ctx context.Context, fn func(tx cart.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&cartTx{tx: tx})
	})
	if err != nil {
		return asConflict(err)
	}
	return nil
}

// ActiveCartView loads the user's active cart with items and product
// snapshots. A user without an active cart gets an empty view.
func (s *CartStore) ActiveCartView(ctx context.Context, userID string) (*cart.View, error) {
	rows, err := s.pool.Query(ctx, getActiveCartSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "getting active cart")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &cart.View{}, nil
		}
		return nil, errors.Wrap(err, "getting active cart")
	}

	itemRows, err := s.pool.Query(ctx, getActiveItemViewsSQL, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting cart items")
	}

	items, err := pgx.CollectRows(itemRows, scanItemView)
	if err != nil {
		return nil, errors.Wrap(err, "scanning cart items")
	}

	return &cart.View{Cart: &c, Items: items}, nil
}

// cartTx implements cart.Tx over a single pgx transaction.
type cartTx struct {
	tx pgx.Tx
}

func (t *cartTx) ProductForUpdate(ctx context.Context, productID string) (*product.Product, error) {
	rows, err := t.tx.Query(ctx, getProductForUpdateSQL, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "locking product %q", productID)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "locking product %q", productID)
	}
	return &p, nil
}

func (t *cartTx) ActiveCart(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := t.tx.Query(ctx, getActiveCartSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "getting active cart")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoActiveCart
		}
		return nil, errors.Wrap(err, "getting active cart")
	}
	return &c, nil
}

func (t *cartTx) CartByID(ctx context.Context, id string) (*cart.Cart, error) {
	rows, err := t.tx.Query(ctx, getCartByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting cart %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoActiveCart
		}
		return nil, errors.Wrapf(err, "getting cart %q", id)
	}
	return &c, nil
}

func (t *cartTx) CreateCart(ctx context.Context, c *cart.Cart) error {
	tag, err := t.tx.Exec(ctx, createCartSQL, c.ID, c.UserID)
	if err != nil {
		return errors.Wrap(asConflict(err), "creating cart")
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrConflict
	}
	return nil
}

func (t *cartTx) LineItem(ctx context.Context, cartID, productID string) (*cart.LineItem, error) {
	rows, err := t.tx.Query(ctx, getLineItemSQL, cartID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "getting line item")
	}

	li, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotInCart
		}
		return nil, errors.Wrap(err, "getting line item")
	}
	return &li, nil
}

func (t *cartTx) LineItemByID(ctx context.Context, id string) (*cart.LineItem, error) {
	rows, err := t.tx.Query(ctx, getLineItemByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting line item %q", id)
	}

	li, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotInCart
		}
		return nil, errors.Wrapf(err, "getting line item %q", id)
	}
	return &li, nil
}

func (t *cartTx) InsertLineItem(ctx context.Context, li *cart.LineItem) error {
	_, err := t.tx.Exec(ctx, insertLineItemSQL,
		li.ID, li.CartID, li.ProductID, li.Quantity, li.Status,
	)
	if err != nil {
		return errors.Wrap(asConflict(err), "inserting line item")
	}
	return nil
}

func (t *cartTx) UpdateLineItem(ctx context.Context, li *cart.LineItem) error {
	_, err := t.tx.Exec(ctx, updateLineItemSQL, li.ID, li.Quantity, li.Status)
	if err != nil {
		return errors.Wrap(asConflict(err), "updating line item")
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanLineItem(row pgx.CollectableRow) (cart.LineItem, error) {
	var li cart.LineItem
	err := row.Scan(
		&li.ID, &li.CartID, &li.ProductID, &li.Quantity,
		&li.Status, &li.CreatedAt, &li.UpdatedAt,
	)
	return li, err
}

func scanItemView(row pgx.CollectableRow) (cart.ItemView, error) {
	var v cart.ItemView
	err := row.Scan(
		&v.Item.ID, &v.Item.CartID, &v.Item.ProductID, &v.Item.Quantity,
		&v.Item.Status, &v.Item.CreatedAt, &v.Item.UpdatedAt,
		&v.Product.ID, &v.Product.Title, &v.Product.Description, &v.Product.Price,
	)
	return v, err
}
