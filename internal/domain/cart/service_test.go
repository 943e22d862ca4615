package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/product"
)

// --- In-memory store ---

// memStore implements Store and Tx over plain maps. Transactions commit
// eagerly; the service tests below assert behavior up to the failing write,
// not rollback.
type memStore struct {
	products map[string]*product.Product
	carts    map[string]*Cart
	items    map[string]*LineItem

	// createConflict simulates another transaction winning the active cart
	// insert: CreateCart fails once with a conflict after a competing cart
	// appears in the store.
	createConflict bool
}

func newMemStore(products ...product.Product) *memStore {
	m := &memStore{
		products: make(map[string]*product.Product, len(products)),
		carts:    make(map[string]*Cart),
		items:    make(map[string]*LineItem),
	}
	for i := range products {
		m.products[products[i].ID] = &products[i]
	}
	return m
}

func (m *memStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	return fn(m)
}

func (m *memStore) ActiveCartView(ctx context.Context, userID string) (*View, error) {
	view := &View{}
	c, err := m.ActiveCart(ctx, userID)
	if err != nil {
		return view, nil
	}
	view.Cart = c
	for _, li := range m.items {
		if li.CartID == c.ID && li.Status == ItemActive {
			view.Items = append(view.Items, ItemView{
				Item:    *li,
				Product: m.products[li.ProductID].Snapshot(),
			})
		}
	}
	return view, nil
}

func (m *memStore) ProductForUpdate(_ context.Context, productID string) (*product.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ActiveCart(_ context.Context, userID string) (*Cart, error) {
	for _, c := range m.carts {
		if c.UserID == userID && c.Status == StatusActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNoActiveCart
}

func (m *memStore) CreateCart(_ context.Context, c *Cart) error {
	if m.createConflict {
		m.createConflict = false
		winner := &Cart{ID: "winner-cart", UserID: c.UserID, Status: StatusActive}
		m.carts[winner.ID] = winner
		return inventory.ErrConflict
	}
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *memStore) LineItem(_ context.Context, cartID, productID string) (*LineItem, error) {
	var removed *LineItem
	for _, li := range m.items {
		if li.CartID != cartID || li.ProductID != productID {
			continue
		}
		if li.Status == ItemActive {
			cp := *li
			return &cp, nil
		}
		if li.Status == ItemRemoved {
			removed = li
		}
	}
	if removed != nil {
		cp := *removed
		return &cp, nil
	}
	return nil, ErrItemNotInCart
}

func (m *memStore) LineItemByID(_ context.Context, id string) (*LineItem, error) {
	li, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotInCart
	}
	cp := *li
	return &cp, nil
}

func (m *memStore) CartByID(_ context.Context, id string) (*Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrNoActiveCart
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) InsertLineItem(_ context.Context, li *LineItem) error {
	cp := *li
	m.items[li.ID] = &cp
	return nil
}

func (m *memStore) UpdateLineItem(_ context.Context, li *LineItem) error {
	cp := *li
	m.items[li.ID] = &cp
	return nil
}

// --- Helpers ---

func newTestProduct(id, price string, quantity int) product.Product {
	return product.Product{
		ID:       id,
		Title:    "Product " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		Version:  1,
		Status:   product.StatusActive,
	}
}

func (m *memStore) activeItems(cartID string) []*LineItem {
	var out []*LineItem
	for _, li := range m.items {
		if li.CartID == cartID && li.Status == ItemActive {
			out = append(out, li)
		}
	}
	return out
}

func (m *memStore) onlyItem(t *testing.T) *LineItem {
	t.Helper()
	require.Len(t, m.items, 1)
	for _, li := range m.items {
		return li
	}
	return nil
}

// --- AddToCart ---

func TestAddToCart_InvalidQuantity(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)

	for _, qty := range []int{0, -1} {
		err := svc.AddToCart(context.Background(), "u1", "p1", qty)

		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr)
		assert.Equal(t, qty, iqErr.Requested)
	}
	assert.Empty(t, store.items)
}

func TestAddToCart_ProductNotFound(t *testing.T) {
	svc := NewService(newMemStore())

	err := svc.AddToCart(context.Background(), "u1", "missing", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddToCart_InactiveProduct(t *testing.T) {
	p := newTestProduct("p1", "10.00", 5)
	p.Status = product.StatusInactive
	svc := NewService(newMemStore(p))

	err := svc.AddToCart(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, product.ErrInactive)
}

func TestAddToCart_ExceedsStock(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 3))
	svc := NewService(store)

	err := svc.AddToCart(context.Background(), "u1", "p1", 4)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, 4, iqErr.Requested)
	assert.Equal(t, 3, iqErr.Available)
	assert.Empty(t, store.items)
}

func TestAddToCart_CreatesCartAndItem(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)

	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 2))

	c, err := store.ActiveCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)

	li := store.onlyItem(t)
	assert.Equal(t, c.ID, li.CartID)
	assert.Equal(t, "p1", li.ProductID)
	assert.Equal(t, 2, li.Quantity)
	assert.Equal(t, ItemActive, li.Status)
}

func TestAddToCart_ReusesActiveCart(t *testing.T) {
	store := newMemStore(
		newTestProduct("p1", "10.00", 5),
		newTestProduct("p2", "5.00", 5),
	)
	svc := NewService(store)

	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p2", 1))

	assert.Len(t, store.carts, 1)
	assert.Len(t, store.items, 2)
}

func TestAddToCart_DuplicateActive(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)

	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))
	err := svc.AddToCart(context.Background(), "u1", "p1", 2)

	require.ErrorIs(t, err, ErrAlreadyInCart)
	assert.Equal(t, 1, store.onlyItem(t).Quantity)
}

func TestAddToCart_ReactivatesRemovedItem(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)

	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))
	removedID := store.onlyItem(t).ID
	require.NoError(t, svc.RemoveFromCart(context.Background(), "u1", removedID))

	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 3))

	// The removed row is reactivated in place, not duplicated.
	li := store.onlyItem(t)
	assert.Equal(t, removedID, li.ID)
	assert.Equal(t, ItemActive, li.Status)
	assert.Equal(t, 3, li.Quantity)
}

func TestAddToCart_RecoversFromConcurrentCartCreate(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	store.createConflict = true
	svc := NewService(store)

	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))

	// The item lands in the cart the competing transaction created.
	assert.Len(t, store.carts, 1)
	assert.Equal(t, "winner-cart", store.onlyItem(t).CartID)
}

// --- UpdateQuantity ---

func TestUpdateQuantity_NoActiveCart(t *testing.T) {
	svc := NewService(newMemStore(newTestProduct("p1", "10.00", 5)))

	err := svc.UpdateQuantity(context.Background(), "u1", "p1", 2)
	require.ErrorIs(t, err, ErrNoActiveCart)
}

func TestUpdateQuantity_ItemNotInCart(t *testing.T) {
	store := newMemStore(
		newTestProduct("p1", "10.00", 5),
		newTestProduct("p2", "5.00", 5),
	)
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))

	err := svc.UpdateQuantity(context.Background(), "u1", "p2", 2)
	require.ErrorIs(t, err, ErrItemNotInCart)
}

func TestUpdateQuantity_ChangesQuantity(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))

	require.NoError(t, svc.UpdateQuantity(context.Background(), "u1", "p1", 4))

	li := store.onlyItem(t)
	assert.Equal(t, 4, li.Quantity)
	assert.Equal(t, ItemActive, li.Status)
}

func TestUpdateQuantity_OutOfRange(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 3))
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))

	for _, qty := range []int{-1, 4} {
		err := svc.UpdateQuantity(context.Background(), "u1", "p1", qty)

		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr)
		assert.Equal(t, qty, iqErr.Requested)
		assert.Equal(t, 3, iqErr.Available)
	}
	assert.Equal(t, 1, store.onlyItem(t).Quantity)
}

func TestUpdateQuantity_ZeroRemovesItem(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 2))

	require.NoError(t, svc.UpdateQuantity(context.Background(), "u1", "p1", 0))

	li := store.onlyItem(t)
	assert.Equal(t, ItemRemoved, li.Status)
	assert.Equal(t, 0, li.Quantity)

	// A removed item is no longer updatable.
	err := svc.UpdateQuantity(context.Background(), "u1", "p1", 1)
	require.ErrorIs(t, err, ErrItemNotInCart)
}

// --- RemoveFromCart ---

func TestRemoveFromCart_UnknownItem(t *testing.T) {
	svc := NewService(newMemStore())

	err := svc.RemoveFromCart(context.Background(), "u1", "nope")
	require.ErrorIs(t, err, ErrItemNotRemovable)
}

func TestRemoveFromCart_ForeignItem(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))
	itemID := store.onlyItem(t).ID

	err := svc.RemoveFromCart(context.Background(), "u2", itemID)

	require.ErrorIs(t, err, ErrItemNotRemovable)
	assert.Equal(t, ItemActive, store.onlyItem(t).Status)
}

func TestRemoveFromCart_AlreadyRemoved(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 1))
	itemID := store.onlyItem(t).ID

	require.NoError(t, svc.RemoveFromCart(context.Background(), "u1", itemID))
	err := svc.RemoveFromCart(context.Background(), "u1", itemID)

	require.ErrorIs(t, err, ErrItemNotRemovable)
}

func TestRemoveFromCart_Removes(t *testing.T) {
	store := newMemStore(newTestProduct("p1", "10.00", 5))
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 2))
	c, err := store.ActiveCart(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveFromCart(context.Background(), "u1", store.onlyItem(t).ID))

	assert.Equal(t, ItemRemoved, store.onlyItem(t).Status)
	assert.Empty(t, store.activeItems(c.ID))
}

// --- GetActiveCart ---

func TestGetActiveCart_Empty(t *testing.T) {
	svc := NewService(newMemStore())

	view, err := svc.GetActiveCart(context.Background(), "u1")

	require.NoError(t, err)
	assert.Nil(t, view.Cart)
	assert.Empty(t, view.Items)
}

func TestGetActiveCart_WithItems(t *testing.T) {
	store := newMemStore(
		newTestProduct("p1", "10.00", 5),
		newTestProduct("p2", "5.00", 5),
	)
	svc := NewService(store)
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p1", 2))
	require.NoError(t, svc.AddToCart(context.Background(), "u1", "p2", 1))
	require.NoError(t, svc.UpdateQuantity(context.Background(), "u1", "p2", 0))

	view, err := svc.GetActiveCart(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, view.Cart)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "p1", view.Items[0].Item.ProductID)
	assert.Equal(t, 2, view.Items[0].Item.Quantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(view.Items[0].Product.Price))
}
