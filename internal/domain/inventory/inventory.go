// Package inventory defines the contract for reading and conditionally
// adjusting product stock. Every read-then-write over available quantity goes
// through a versioned adjustment so that lost updates are impossible: the
// write succeeds only if the stock row is still at the version the caller
// read, otherwise ErrConflict is returned and the caller decides whether to
// retry.
package inventory

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/valyx/checkout/internal/domain/product"
)

// ErrConflict is returned when a stock or cart row changed underneath a
// conditional write. It is the only retryable error in the core.
var ErrConflict = errors.New("concurrent modification conflict")

// IsRetryable reports whether the caller may retry the failed operation
// unchanged. Only conflicts qualify; every other failure needs a different
// request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Accessor reads current stock and applies conditional stock deltas.
type Accessor interface {
	// GetProduct returns the product with its current stock and version.
	GetProduct(ctx context.Context, id string) (*product.Product, error)

	// AdjustStock applies delta to the product's available quantity, but only
	// if the row is still at expectedVersion and the resulting quantity is
	// non-negative. Returns ErrConflict otherwise.
	AdjustStock(ctx context.Context, id string, delta int, expectedVersion int64) error
}
