// Package inventory defines the stock ledger: the only component allowed to
// mutate per-variant stock counters.
package inventory

import (
	"context"
	"fmt"
)

// Ledger owns per-product, per-(size,color) stock counters. Decrement is the
// single permitted mutation path; no read-modify-write of stock happens
// anywhere else.
type Ledger interface {
	// Decrement atomically subtracts qty from the variant identified by
	// (productID, size, color), matching the labels case-insensitively.
	// The subtraction only happens when the remaining stock covers qty;
	// two concurrent decrements against the last unit can never both
	// succeed. On failure it returns *ProductNotFoundError,
	// *VariantNotFoundError or *OutOfStockError.
	Decrement(ctx context.Context, productID, size, color string, qty int) error
}

// ProductNotFoundError indicates the product referenced by a decrement does
// not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// VariantNotFoundError indicates the product exists but has no variant with
// the requested size and color labels.
type VariantNotFoundError struct {
	ProductID string
	Size      string
	Color     string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("product %s has no variant %s/%s", e.ProductID, e.Size, e.Color)
}

// OutOfStockError indicates the variant exists but its stock does not cover
// the requested quantity. Available is a best-effort diagnostic read taken
// after the decrement already failed; it must never drive a retry.
type OutOfStockError struct {
	ProductID string
	Size      string
	Color     string
	Available int
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %s/%s: available %d, requested %d",
		e.ProductID, e.Size, e.Color, e.Available, e.Requested)
}
