package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/quipushop/checkout/internal/domain/order"
)

// GetOrder handles GET /api/orders/{id}: order tracking lookup.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Order lookup failed", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

type statusUpdateRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
}

var validStatuses = map[string]bool{
	order.StatusPending:   true,
	order.StatusConfirmed: true,
	order.StatusPreparing: true,
	order.StatusShipped:   true,
	order.StatusDelivered: true,
	order.StatusCancelled: true,
}

// UpdateOrderStatus handles PATCH /api/orders/{id}/status: the back-office
// transition of fulfillment status and tracking number, the only mutable
// order fields. Requires a valid API key.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.security.Authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !validStatuses[req.Status] {
		writeError(w, http.StatusUnprocessableEntity, "unknown status")
		return
	}

	err := h.orders.UpdateStatus(r.Context(), id, order.StatusUpdate{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Order status update failed", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(id)
		e.FieldStart("status")
		e.Str(req.Status)
		e.ObjEnd()
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(o.Status)
	e.FieldStart("paymentStatus")
	e.Str(o.PaymentStatus)
	e.FieldStart("subtotal")
	e.Float64(o.Subtotal.InexactFloat64())
	e.FieldStart("shippingCost")
	e.Float64(o.ShippingCost.InexactFloat64())
	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())
	e.FieldStart("estimatedDelivery")
	e.Str(o.EstimatedDelivery.Format(time.RFC3339))
	if o.TrackingNumber != "" {
		e.FieldStart("trackingNumber")
		e.Str(o.TrackingNumber)
	}
	e.FieldStart("customer")
	e.ObjStart()
	e.FieldStart("firstName")
	e.Str(o.Customer.FirstName)
	e.FieldStart("lastName")
	e.Str(o.Customer.LastName)
	e.FieldStart("email")
	e.Str(o.Customer.Email)
	e.ObjEnd()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("size")
		e.Str(item.Size)
		e.FieldStart("color")
		e.Str(item.Color)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("unitPrice")
		e.Float64(item.UnitPrice.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
