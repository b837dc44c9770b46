package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable wraps transport failures talking to the gateway.
// Intent creation is not retried here; the caller surfaces the failure.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// GatewayRejectedError is returned when the gateway answers with a
// non-success status. Message carries the gateway's diagnostic text when
// present.
type GatewayRejectedError struct {
	Status  string
	Message string
}

func (e *GatewayRejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway rejected intent: %s (%s)", e.Status, e.Message)
	}
	return fmt.Sprintf("gateway rejected intent: %s", e.Status)
}

// ClientConfig configures the gateway client. Username and Password form the
// confidential server-side credential pair; PublicKey is the client-facing
// key embedded in the hosted widget and never used to authenticate outbound
// calls.
type ClientConfig struct {
	Endpoint     string
	Username     string
	Password     string
	PublicKey    string
	MerchantCode string
	// Currency is the default three-letter code used when an intent does
	// not specify one.
	Currency string
	Timeout  time.Duration
}

// Client talks to the hosted-payment-page gateway.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a gateway Client. A blank Currency defaults to PEN and
// a zero Timeout to 10s.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "PEN"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// PublicKey returns the client-facing key for embedding the hosted widget.
func (c *Client) PublicKey() string { return c.cfg.PublicKey }

// MerchantCode returns the merchant identifier used in session configs.
func (c *Client) MerchantCode() string { return c.cfg.MerchantCode }

// CreateIntentRequest is the input for CreatePaymentIntent. Amount is in
// major currency units.
type CreateIntentRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
	Customer Buyer
}

// Intent is the gateway's synchronous answer to a created payment intent.
type Intent struct {
	FormToken string
	PublicKey string
	// AmountMinor is the charged amount in minor units, as submitted.
	AmountMinor int64
	Currency    string
}

type createPaymentBody struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	OrderID    string `json:"orderId"`
	Customer   Buyer  `json:"customer"`
	FormAction string `json:"formAction"`
}

type createPaymentResponse struct {
	Status string `json:"status"`
	Answer struct {
		FormToken    string `json:"formToken"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"answer"`
}

// CreatePaymentIntent requests a form token for one intended charge. The
// caller must stash the cart lines in the pending-intent store under
// req.OrderID right after a successful return: the asynchronous confirmation
// carries only identifiers and totals, never line items.
func (c *Client) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}

	body := createPaymentBody{
		Amount:     MajorToMinor(req.Amount),
		Currency:   currency,
		OrderID:    req.OrderID,
		Customer:   req.Customer,
		FormAction: "PAYMENT",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode intent")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoint+"/Charge/CreatePayment", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(ErrGatewayUnavailable, "create payment: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(ErrGatewayUnavailable, "read response: %v", err)
	}

	var parsed createPaymentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrapf(ErrGatewayUnavailable, "decode response (http %d): %v", resp.StatusCode, err)
	}

	if parsed.Status != "SUCCESS" {
		return nil, &GatewayRejectedError{
			Status:  parsed.Status,
			Message: parsed.Answer.ErrorMessage,
		}
	}
	if parsed.Answer.FormToken == "" {
		return nil, &GatewayRejectedError{Status: parsed.Status, Message: "missing form token"}
	}

	return &Intent{
		FormToken:   parsed.Answer.FormToken,
		PublicKey:   c.cfg.PublicKey,
		AmountMinor: body.Amount,
		Currency:    currency,
	}, nil
}

// SessionConfig is the convenience bundle for embedding the hosted widget.
// It carries no logic of its own.
type SessionConfig struct {
	MerchantCode string `json:"merchantCode"`
	OrderNumber  string `json:"orderNumber"`
	// Amount is the minor-unit amount serialized as a string, the form the
	// widget expects.
	Amount    string `json:"amount"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// NewSessionConfig builds the widget configuration for a created intent.
func NewSessionConfig(merchantCode string, intent *Intent, orderID string, buyer Buyer) SessionConfig {
	return SessionConfig{
		MerchantCode: merchantCode,
		OrderNumber:  orderID,
		Amount:       strconv.FormatInt(intent.AmountMinor, 10),
		FirstName:    buyer.BillingDetails.FirstName,
		LastName:     buyer.BillingDetails.LastName,
		Email:        buyer.Email,
		Phone:        buyer.BillingDetails.PhoneNumber,
	}
}
