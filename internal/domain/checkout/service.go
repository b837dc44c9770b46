// Package checkout creates payment sessions: it prices the cart, mints the
// merchant order id, requests a form token from the gateway and stashes the
// cart snapshot for the confirmation callback.
package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quipushop/checkout/internal/domain/order"
	"github.com/quipushop/checkout/internal/domain/product"
	"github.com/quipushop/checkout/internal/intent"
	"github.com/quipushop/checkout/internal/payment"
)

// Sentinel errors for cart validation.
var (
	ErrEmptyCart = fmt.Errorf("items required")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Gateway is the slice of the payment client the checkout flow needs.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error)
	PublicKey() string
	MerchantCode() string
}

// CartItem is one requested variant in a checkout.
type CartItem struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
}

// CreateSessionRequest holds the input for creating a payment session.
type CreateSessionRequest struct {
	Items        []CartItem
	ShippingCost decimal.Decimal
	Currency     string
	Buyer        payment.Buyer
}

// Session is a created payment session: everything the client needs to
// render the gateway's hosted widget for this one intended charge.
type Session struct {
	OrderID   string
	FormToken string
	PublicKey string
	Config    payment.SessionConfig
}

// Service encapsulates payment-session creation.
type Service struct {
	products product.Repository
	gateway  Gateway
	intents  intent.Store
}

// NewService creates a checkout Service with the required dependencies.
func NewService(products product.Repository, gateway Gateway, intents intent.Store) *Service {
	return &Service{
		products: products,
		gateway:  gateway,
		intents:  intents,
	}
}

// CreateSession validates and prices the cart from the catalog (unit prices
// are captured now and never re-read), mints the order id, requests the form
// token and stores the pending intent. Storing the snapshot is part of the
// contract, not bookkeeping: the confirmation callback carries no line-item
// detail.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	lines := make([]order.LineItem, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, found := productMap[item.ProductID]
		if !found {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines[i] = order.LineItem{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	shipping := req.ShippingCost
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	total := subtotal.Add(shipping).Round(2)

	orderID := uuid.New().String()

	pi, err := s.gateway.CreatePaymentIntent(ctx, payment.CreateIntentRequest{
		OrderID:  orderID,
		Amount:   total,
		Currency: req.Currency,
		Customer: req.Buyer,
	})
	if err != nil {
		return nil, err
	}

	// Without the snapshot a later confirmation would materialize an order
	// with no reconstructable lines, so a failed Put fails the session.
	if err := s.intents.Put(ctx, orderID, lines); err != nil {
		return nil, fmt.Errorf("store pending intent: %w", err)
	}

	return &Session{
		OrderID:   orderID,
		FormToken: pi.FormToken,
		PublicKey: pi.PublicKey,
		Config:    payment.NewSessionConfig(s.gateway.MerchantCode(), pi, orderID, req.Buyer),
	}, nil
}
