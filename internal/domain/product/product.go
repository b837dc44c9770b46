package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Variants []Variant
}

// Variant is a (size, color) stock-keeping unit of a product. Size and color
// are free-text labels; matching against them is case-insensitive.
type Variant struct {
	Size  string
	Color string
	Stock int
}

// Repository defines read operations for the product catalog. Catalog
// management itself lives outside this service; the checkout flow only needs
// to price carts and the ledger owns stock mutation.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
