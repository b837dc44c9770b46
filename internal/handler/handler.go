// Package handler exposes the HTTP surface: checkout session creation, the
// gateway's confirmation callback and order tracking.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/quipushop/checkout/internal/domain/checkout"
	"github.com/quipushop/checkout/internal/domain/order"
)

// Handler maps HTTP requests to the checkout and fulfillment services.
type Handler struct {
	checkout    *checkout.Service
	fulfillment *order.Fulfillment
	orders      order.Repository
	security    *SecurityHandler
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	checkoutSvc *checkout.Service,
	fulfillment *order.Fulfillment,
	orders order.Repository,
	security *SecurityHandler,
) *Handler {
	return &Handler{
		checkout:    checkoutSvc,
		fulfillment: fulfillment,
		orders:      orders,
		security:    security,
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout/session", h.CreateSession)
	mux.HandleFunc("POST /api/payment/validate", h.ValidatePayment)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.UpdateOrderStatus)
}

// writeJSON encodes a response body with jx and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}
