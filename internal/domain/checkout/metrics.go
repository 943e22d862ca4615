package checkout

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds purchase outcome counters.
type Metrics struct {
	purchases         metric.Int64Counter
	insufficientStock metric.Int64Counter
	conflicts         metric.Int64Counter
}

// NewMetrics registers the checkout counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	purchases, err := meter.Int64Counter("checkout.purchases",
		metric.WithDescription("Completed purchases"))
	if err != nil {
		return nil, errors.Wrap(err, "purchases counter")
	}

	insufficient, err := meter.Int64Counter("checkout.insufficient_stock",
		metric.WithDescription("Purchases aborted due to insufficient stock"))
	if err != nil {
		return nil, errors.Wrap(err, "insufficient stock counter")
	}

	conflicts, err := meter.Int64Counter("checkout.conflicts",
		metric.WithDescription("Purchases aborted due to concurrent modification"))
	if err != nil {
		return nil, errors.Wrap(err, "conflicts counter")
	}

	return &Metrics{
		purchases:         purchases,
		insufficientStock: insufficient,
		conflicts:         conflicts,
	}, nil
}
