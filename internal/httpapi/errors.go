package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/checkout"
	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/order"
	"github.com/valyx/checkout/internal/domain/product"
)

// writeDomainError maps a domain error to its HTTP response. Conflicts are
// the only retryable class; clients distinguish them by the 409 status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		qtyErr   *cart.InvalidQuantityError
		stockErr *checkout.InsufficientStockError
	)
	switch {
	case errors.As(err, &qtyErr):
		writeError(w, http.StatusBadRequest, qtyErr.Error())
	case errors.Is(err, product.ErrInactive):
		writeError(w, http.StatusBadRequest, "product is not available")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrNoActiveCart):
		writeError(w, http.StatusNotFound, "no active cart")
	case errors.Is(err, cart.ErrItemNotInCart):
		writeError(w, http.StatusNotFound, "product not in cart")
	case errors.Is(err, cart.ErrAlreadyInCart):
		writeError(w, http.StatusConflict, "product already in cart")
	case errors.Is(err, cart.ErrItemNotRemovable):
		writeError(w, http.StatusConflict, "line item cannot be removed")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &stockErr):
		writeError(w, http.StatusUnprocessableEntity, stockErr.Error())
	case inventory.IsRetryable(err):
		writeError(w, http.StatusConflict, "concurrent modification, retry the request")
	default:
		h.logger(r).Error("unhandled domain error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
