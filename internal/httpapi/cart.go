package httpapi

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// addToCartRequest is the body of POST /api/v1/cart.
type addToCartRequest struct {
	ProductID string
	Quantity  int
}

func decodeAddToCart(body []byte) (addToCartRequest, error) {
	var req addToCartRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.ProductID = v
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			req.Quantity = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(err, "decode body")
	}
	if req.ProductID == "" {
		return req, errors.New("productId is required")
	}
	return req, nil
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request, userID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	req, err := decodeAddToCart(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.carts.AddToCart(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeCartView(w, r, userID, http.StatusCreated)
}

// updateQuantityRequest is the body of PATCH /api/v1/cart.
type updateQuantityRequest struct {
	ProductID   string
	NewQuantity int
	quantitySet bool
}

func decodeUpdateQuantity(body []byte) (updateQuantityRequest, error) {
	var req updateQuantityRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.ProductID = v
			return nil
		case "newQuantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			req.NewQuantity = v
			req.quantitySet = true
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(err, "decode body")
	}
	if req.ProductID == "" {
		return req, errors.New("productId is required")
	}
	if !req.quantitySet {
		return req, errors.New("newQuantity is required")
	}
	return req, nil
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request, userID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	req, err := decodeUpdateQuantity(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), userID, req.ProductID, req.NewQuantity); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeCartView(w, r, userID, http.StatusOK)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request, userID string) {
	itemID := r.PathValue("itemID")
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item id is required")
		return
	}

	if err := h.carts.RemoveFromCart(r.Context(), userID, itemID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeCartView(w, r, userID, http.StatusOK)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, userID string) {
	h.writeCartView(w, r, userID, http.StatusOK)
}

// writeCartView loads the user's active cart and renders it. Shared by every
// cart mutation so the client always gets the post-mutation state back.
func (h *Handler) writeCartView(w http.ResponseWriter, r *http.Request, userID string, status int) {
	view, err := h.carts.GetActiveCart(r.Context(), userID)
	if err != nil {
		h.logger(r).Error("load cart view", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, encodeCartView(view))
}
