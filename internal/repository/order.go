package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valyx/checkout/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, user_id, cart_id, total_price, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2`

	listOrdersSQL = `SELECT id, user_id, cart_id, total_price, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`

	getPurchasedItemsSQL = `SELECT ci.quantity, ci.status,
			p.id, p.title, p.description, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1 AND ci.status = 'purchased'
		ORDER BY ci.created_at`
)

var _ order.Ledger = (*OrderLedger)(nil)

// OrderLedger implements the order read side backed by PostgreSQL. Orders
// are written only inside the purchase transaction; this type never mutates.
type OrderLedger struct {
	pool *pgxpool.Pool
}

// NewOrderLedger returns an OrderLedger that uses the given pool.
func NewOrderLedger(pool *pgxpool.Pool) *OrderLedger {
	return &OrderLedger{pool: pool}
}

// GetView returns the user's order with its purchased line items.
func (r *OrderLedger) GetView(ctx context.Context, userID, orderID string) (*order.View, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, orderID, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", orderID)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", orderID)
	}

	items, err := r.purchasedItems(ctx, o.CartID)
	if err != nil {
		return nil, err
	}

	return &order.View{Order: o, Items: items}, nil
}

// ListViews returns all of the user's orders with their line items, newest
// first.
func (r *OrderLedger) ListViews(ctx context.Context, userID string) ([]order.View, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scanning orders")
	}

	views := make([]order.View, len(orders))
	for i, o := range orders {
		items, err := r.purchasedItems(ctx, o.CartID)
		if err != nil {
			return nil, err
		}
		views[i] = order.View{Order: o, Items: items}
	}
	return views, nil
}

func (r *OrderLedger) purchasedItems(ctx context.Context, cartID string) ([]order.ItemView, error) {
	rows, err := r.pool.Query(ctx, getPurchasedItemsSQL, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "getting purchased items")
	}
	return pgx.CollectRows(rows, scanOrderItemView)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.TotalPrice, &o.CreatedAt)
	return o, err
}

func scanOrderItemView(row pgx.CollectableRow) (order.ItemView, error) {
	var v order.ItemView
	err := row.Scan(
		&v.Quantity, &v.Status,
		&v.Product.ID, &v.Product.Title, &v.Product.Description, &v.Product.Price,
	)
	return v, err
}
