// Package events publishes domain events to downstream consumers (fulfilment,
// analytics). Publishing happens after the purchase transaction commits and
// never affects the purchase outcome.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreated is emitted once per successful purchase.
type OrderCreated struct {
	OrderID    string
	UserID     string
	CartID     string
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// Publisher emits domain events.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, ev OrderCreated) error
	Close() error
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, OrderCreated) error { return nil }

func (NopPublisher) Close() error { return nil }
