package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/valyx/checkout/internal/events"
)

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request, userID string) {
	o, err := h.checkout.Purchase(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	// The purchase is committed; a failed event publish must not fail the
	// request. It is logged and the consumer catches up from the ledger.
	ev := events.OrderCreated{
		OrderID:    o.ID,
		UserID:     o.UserID,
		CartID:     o.CartID,
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt,
	}
	if err := h.events.PublishOrderCreated(r.Context(), ev); err != nil {
		h.logger(r).Warn("publish order.created",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusCreated, encodeOrder(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, userID string) {
	views, err := h.orders.List(r.Context(), userID)
	if err != nil {
		h.logger(r).Error("list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, encodeOrderViews(views))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, userID string) {
	orderID := r.PathValue("orderID")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order id is required")
		return
	}

	view, err := h.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrderView(view))
}
