package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/order"
	"github.com/valyx/checkout/internal/domain/product"
)

// Service is the checkout engine.
type Service struct {
	store   Store
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches purchase outcome counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer attaches a tracer for purchase spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a checkout engine over the given transactional store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Purchase converts the user's active cart into an order.
//
// Inside one transaction it validates every active line item against current
// stock, decrements stock per item, transitions the items and the cart to
// purchased, and appends the order with the total priced at this moment. On
// any failure the transaction rolls back and no stock, line item, or cart
// state has changed. Concurrent purchases of the same cart are serialized by
// the cart row lock; the loser observes cart.ErrNoActiveCart. Stock
// conflicts with other carts surface as inventory.ErrConflict, which callers
// may retry.
func (s *Service) Purchase(ctx context.Context, userID string) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Purchase")
	defer span.End()

	var placed *order.Order
	err := s.store.InPurchaseTx(ctx, func(tx PurchaseTx) error {
		c, err := tx.ActiveCartForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		items, err := tx.ActiveItems(ctx, c.ID)
		if err != nil {
			return errors.Wrap(err, "load line items")
		}
		if len(items) == 0 {
			return cart.ErrNoActiveCart
		}

		ids := make([]string, len(items))
		for i, li := range items {
			ids[i] = li.ProductID
		}
		products, err := tx.ProductsForUpdate(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "load products")
		}

		byID := make(map[string]product.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		// Validate every item before touching any stock: the first violation
		// aborts the whole purchase.
		for _, li := range items {
			p, ok := byID[li.ProductID]
			if !ok {
				return product.ErrNotFound
			}
			if li.Quantity > p.Quantity {
				return &InsufficientStockError{
					ProductID: li.ProductID,
					Requested: li.Quantity,
					Available: p.Quantity,
				}
			}
		}

		for _, li := range items {
			p := byID[li.ProductID]
			if err := tx.DecrementStock(ctx, p.ID, li.Quantity, p.Version); err != nil {
				return errors.Wrapf(err, "decrement stock for product %s", p.ID)
			}
		}

		// Total is computed sequentially over the locked rows, after all
		// decrements succeeded.
		total := decimal.Zero
		itemIDs := make([]string, len(items))
		for i, li := range items {
			p := byID[li.ProductID]
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(li.Quantity))))
			itemIDs[i] = li.ID
		}
		total = total.Round(2)

		o := &order.Order{
			ID:         uuid.New().String(),
			UserID:     userID,
			CartID:     c.ID,
			TotalPrice: total,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if err := tx.MarkItemsPurchased(ctx, c.ID, itemIDs); err != nil {
			return errors.Wrap(err, "mark items purchased")
		}

		if !c.Status.CanTransition(cart.StatusPurchased) {
			return &cart.InvalidTransitionError{Entity: "cart", From: string(c.Status), To: string(cart.StatusPurchased)}
		}
		if err := tx.CloseCart(ctx, c.ID); err != nil {
			return errors.Wrap(err, "close cart")
		}

		placed = o
		return nil
	})
	if err != nil {
		s.recordOutcome(ctx, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", placed.ID))
	s.recordOutcome(ctx, nil)
	return placed, nil
}

func (s *Service) recordOutcome(ctx context.Context, err error) {
	if s.metrics == nil {
		return
	}

	var stockErr *InsufficientStockError
	switch {
	case err == nil:
		s.metrics.purchases.Add(ctx, 1)
	case errors.As(err, &stockErr):
		s.metrics.insufficientStock.Add(ctx, 1)
	case inventory.IsRetryable(err):
		s.metrics.conflicts.Add(ctx, 1)
	}
}
