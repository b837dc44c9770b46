package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/quipushop/checkout/internal/domain/order"
	"github.com/quipushop/checkout/internal/payment"
)

// ValidatePayment handles POST /api/payment/validate: the gateway's
// asynchronous confirmation. A verified non-paid outcome is a 200 with
// success=false; only verification and processing failures are errors.
func (h *Handler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	result, err := h.fulfillment.Confirm(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrSignatureInvalid):
			writeError(w, http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, payment.ErrMalformedCallback):
			writeError(w, http.StatusBadRequest, "malformed callback")
		default:
			zctx.From(r.Context()).Error("Payment confirmation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(result.Paid)
		if result.OrderID != "" {
			e.FieldStart("orderId")
			e.Str(result.OrderID)
		}
		e.ObjEnd()
	})
}
