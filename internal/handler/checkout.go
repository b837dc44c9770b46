package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quipushop/checkout/internal/domain/checkout"
	"github.com/quipushop/checkout/internal/payment"
)

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type checkoutCustomerRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	IdentityType string `json:"identityType"`
	IdentityCode string `json:"identityCode"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
}

type checkoutRequest struct {
	Items        []checkoutItemRequest   `json:"items"`
	ShippingCost decimal.Decimal         `json:"shippingCost"`
	Currency     string                  `json:"currency"`
	Customer     checkoutCustomerRequest `json:"customer"`
}

// CreateSession handles POST /api/checkout/session: it prices the cart,
// requests a gateway form token and returns the widget session bundle.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	items := make([]checkout.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = checkout.CartItem{
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
		}
	}

	session, err := h.checkout.CreateSession(r.Context(), checkout.CreateSessionRequest{
		Items:        items,
		ShippingCost: req.ShippingCost,
		Currency:     req.Currency,
		Buyer: payment.Buyer{
			Email: req.Customer.Email,
			BillingDetails: payment.BillingDetails{
				FirstName:    req.Customer.FirstName,
				LastName:     req.Customer.LastName,
				PhoneNumber:  req.Customer.Phone,
				IdentityType: req.Customer.IdentityType,
				IdentityCode: req.Customer.IdentityCode,
			},
			ShippingDetails: payment.ShippingDetails{
				Address: req.Customer.Address,
				City:    req.Customer.City,
				State:   req.Customer.State,
				ZipCode: req.Customer.ZipCode,
				Country: req.Customer.Country,
			},
		},
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(session.FormToken)
		e.FieldStart("keyRSA")
		e.Str(session.PublicKey)
		e.FieldStart("orderId")
		e.Str(session.OrderID)
		e.FieldStart("config")
		encodeSessionConfig(e, session.Config)
		e.ObjEnd()
	})
}

func encodeSessionConfig(e *jx.Encoder, cfg payment.SessionConfig) {
	e.ObjStart()
	e.FieldStart("merchantCode")
	e.Str(cfg.MerchantCode)
	e.FieldStart("orderNumber")
	e.Str(cfg.OrderNumber)
	e.FieldStart("amount")
	e.Str(cfg.Amount)
	e.FieldStart("firstName")
	e.Str(cfg.FirstName)
	e.FieldStart("lastName")
	e.Str(cfg.LastName)
	e.FieldStart("email")
	e.Str(cfg.Email)
	e.FieldStart("phone")
	e.Str(cfg.Phone)
	e.ObjEnd()
}

// writeCheckoutError maps checkout and gateway errors to HTTP responses.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, checkout.ErrEmptyCart) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *checkout.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	var pnfErr *checkout.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	var rejected *payment.GatewayRejectedError
	if errors.As(err, &rejected) {
		writeError(w, http.StatusBadGateway, rejected.Error())
		return
	}

	if errors.Is(err, payment.ErrGatewayUnavailable) {
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}

	zctx.From(r.Context()).Error("Checkout session failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
