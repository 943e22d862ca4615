package httpapi

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/valyx/checkout/internal/domain/cart"
	"github.com/valyx/checkout/internal/domain/order"
	"github.com/valyx/checkout/internal/domain/product"
)

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, e.Bytes())
}

func encodeCartView(v *cart.View) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("cart", func(e *jx.Encoder) {
			if v.Cart == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(v.Cart.ID) })
				e.Field("userId", func(e *jx.Encoder) { e.Str(v.Cart.UserID) })
				e.Field("status", func(e *jx.Encoder) { e.Str(string(v.Cart.Status)) })
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range v.Items {
					encodeItemView(e, item)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeItemView(e *jx.Encoder, v cart.ItemView) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(v.Item.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(v.Item.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(v.Item.Quantity) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(v.Item.Status)) })
		e.Field("product", func(e *jx.Encoder) { encodeSnapshot(e, v.Product) })
	})
}

func encodeSnapshot(e *jx.Encoder, s product.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(s.Title) })
		e.Field("description", func(e *jx.Encoder) { e.Str(s.Description) })
		e.Field("price", func(e *jx.Encoder) { e.Float64(s.Price.InexactFloat64()) })
	})
}

func encodeOrder(o *order.Order) []byte {
	var e jx.Encoder
	encodeOrderFields(&e, *o, nil)
	return e.Bytes()
}

func encodeOrderView(v *order.View) []byte {
	var e jx.Encoder
	encodeOrderFields(&e, v.Order, v.Items)
	return e.Bytes()
}

func encodeOrderViews(views []order.View) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range views {
					var inner jx.Encoder
					encodeOrderFields(&inner, views[i].Order, views[i].Items)
					e.Raw(inner.Bytes())
				}
			})
		})
	})
	return e.Bytes()
}

func encodeOrderFields(e *jx.Encoder, o order.Order, items []order.ItemView) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("cartId", func(e *jx.Encoder) { e.Str(o.CartID) })
		e.Field("totalPrice", func(e *jx.Encoder) { e.Float64(o.TotalPrice.InexactFloat64()) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		if items != nil {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, item := range items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
							e.Field("status", func(e *jx.Encoder) { e.Str(string(item.Status)) })
							e.Field("product", func(e *jx.Encoder) { encodeSnapshot(e, item.Product) })
						})
					}
				})
			})
		}
	})
}
