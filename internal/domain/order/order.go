package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Fulfillment status values. Orders move pending → confirmed → preparing →
// shipped → delivered, or to cancelled. There is no hard delete; the
// lifecycle is status-only.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Customer holds the buyer contact captured from the payment answer.
type Customer struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	DocumentType   string
	DocumentNumber string
}

// ShippingAddress is the destination captured from the payment answer.
type ShippingAddress struct {
	Address string
	City    string
	State   string
	ZipCode string
	Country string
}

// LineItem is a purchased variant with the unit price captured at the moment
// of purchase. The price is never re-read from the catalog, so historical
// orders stay accurate when catalog prices change.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is the durable record of a paid purchase. It is created exactly once,
// after a verified paid outcome, and is immutable afterwards except for the
// fulfillment status and tracking fields. Total equals Subtotal+ShippingCost
// at creation time.
type Order struct {
	ID                string
	Customer          Customer
	Shipping          ShippingAddress
	Items             []LineItem
	Subtotal          decimal.Decimal
	ShippingCost      decimal.Decimal
	Total             decimal.Decimal
	PaymentMethod     string
	PaymentStatus     string
	Status            string
	EstimatedDelivery time.Time
	TrackingNumber    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StatusUpdate carries the only mutable fields of a persisted order.
type StatusUpdate struct {
	Status         string
	TrackingNumber string
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// Exists reports whether an order with the given ID has already been
	// persisted. The fulfillment pipeline uses it to drop redelivered
	// gateway callbacks.
	Exists(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
}
