// Package httpapi is the thin JSON layer over the cart, checkout, and order
// services. It decodes requests, threads the authenticated user id into every
// operation, and maps domain errors to HTTP status codes. No business rules
// live here.
package httpapi

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/valyx/checkout/internal/domain/auth"
	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/checkout"
	"github.com/valyx/checkout/internal/domain/order"
	"github.com/valyx/checkout/internal/events"
)

// Handler serves the cart and order API.
type Handler struct {
	carts    *cart.Service
	checkout *checkout.Service
	orders   *order.Service
	auth     *auth.Authenticator
	events   events.Publisher
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Service,
	checkoutSvc *checkout.Service,
	orders *order.Service,
	authn *auth.Authenticator,
	publisher events.Publisher,
) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkoutSvc,
		orders:   orders,
		auth:     authn,
		events:   publisher,
	}
}

// Register mounts all API routes on the mux. Every route requires an API key.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/cart", h.authenticated(h.addToCart))
	mux.HandleFunc("PATCH /api/v1/cart", h.authenticated(h.updateQuantity))
	mux.HandleFunc("DELETE /api/v1/cart/items/{itemID}", h.authenticated(h.removeItem))
	mux.HandleFunc("GET /api/v1/cart", h.authenticated(h.getCart))
	mux.HandleFunc("POST /api/v1/cart/purchase", h.authenticated(h.purchase))
	mux.HandleFunc("GET /api/v1/orders", h.authenticated(h.listOrders))
	mux.HandleFunc("GET /api/v1/orders/{orderID}", h.authenticated(h.getOrder))
}

// authenticated resolves the X-API-Key header to a user id before invoking
// the wrapped handler.
func (h *Handler) authenticated(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.auth.Authenticate(r.Context(), r.Header.Get("X-API-Key"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, id.UserID)
	}
}

func (h *Handler) logger(r *http.Request) *zap.Logger {
	return zctx.From(r.Context())
}
