package payment

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/go-faster/errors"
)

// Gateway order status reported in the answer. Anything other than
// StatusPaid is a non-purchase outcome, not an error.
const StatusPaid = "PAID"

// ErrMalformedCallback is returned when the callback envelope or the decoded
// answer cannot be interpreted. The pipeline fails closed on it: no order is
// created from a partially-populated answer.
var ErrMalformedCallback = errors.New("malformed gateway callback")

// Callback is the envelope the gateway posts to the validation endpoint.
// Answer keeps the exact received bytes so the signature can be computed
// over them before any decoding happens.
type Callback struct {
	Answer json.RawMessage `json:"kr-answer"`
	Hash   string          `json:"kr-hash"`
}

// SignedBytes returns the byte sequence the gateway hashed. When kr-answer
// is a JSON string it carries base64 text and the signature covers that
// text; when it is an object the signature covers its raw JSON as received.
func (c *Callback) SignedBytes() ([]byte, error) {
	raw := bytes.TrimSpace(c.Answer)
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrMalformedCallback, "empty kr-answer")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Wrap(ErrMalformedCallback, "kr-answer string")
		}
		return []byte(s), nil
	}
	return raw, nil
}

// DecodeAnswer decodes the verified answer into its schema. It must only be
// called after VerifySignature has accepted the signed bytes.
func (c *Callback) DecodeAnswer() (*Answer, error) {
	signed, err := c.SignedBytes()
	if err != nil {
		return nil, err
	}

	payload := signed
	if bytes.TrimSpace(c.Answer)[0] == '"' {
		payload, err = base64.StdEncoding.DecodeString(string(signed))
		if err != nil {
			return nil, errors.Wrap(ErrMalformedCallback, "kr-answer base64")
		}
	}

	var a Answer
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, errors.Wrap(ErrMalformedCallback, "kr-answer json")
	}
	return &a, nil
}

// ParseCallback decodes the callback envelope from a request body.
func ParseCallback(body []byte) (*Callback, error) {
	var c Callback
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, errors.Wrap(ErrMalformedCallback, "envelope")
	}
	if len(c.Answer) == 0 || c.Hash == "" {
		return nil, errors.Wrap(ErrMalformedCallback, "missing kr-answer or kr-hash")
	}
	return &c, nil
}

// Answer is the decoded gateway answer. Only the fields the fulfillment
// pipeline consumes are modeled; unknown fields are ignored.
type Answer struct {
	OrderStatus  string       `json:"orderStatus"`
	OrderID      string       `json:"orderId"`
	OrderDetails OrderDetails `json:"orderDetails"`
	Customer     Buyer        `json:"customer"`
}

// OrderDetails carries the merchant order identity and the paid total in
// minor currency units.
type OrderDetails struct {
	OrderID          string     `json:"orderId"`
	OrderTotalAmount minorUnits `json:"orderTotalAmount"`
}

// Buyer holds the contact and address fields embedded in the answer.
type Buyer struct {
	Email           string          `json:"email"`
	BillingDetails  BillingDetails  `json:"billingDetails"`
	ShippingDetails ShippingDetails `json:"shippingDetails"`
}

type BillingDetails struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhoneNumber  string `json:"phoneNumber"`
	IdentityType string `json:"identityType"`
	IdentityCode string `json:"identityCode"`
}

type ShippingDetails struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// MerchantOrderID returns the order identity of the answer, preferring
// orderDetails.orderId and falling back to the top-level orderId.
func (a *Answer) MerchantOrderID() string {
	if a.OrderDetails.OrderID != "" {
		return a.OrderDetails.OrderID
	}
	return a.OrderID
}

// Paid reports whether the answer describes a successful payment.
func (a *Answer) Paid() bool {
	return a.OrderStatus == StatusPaid
}

// minorUnits tolerates gateways that serialize amounts as either a JSON
// number or a numeric string.
type minorUnits int64

func (m *minorUnits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*m = minorUnits(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = minorUnits(v)
	return nil
}

// Int64 returns the amount in minor units.
func (m minorUnits) Int64() int64 { return int64(m) }
