package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipushop/checkout/internal/domain/inventory"
)

var _ inventory.Ledger = (*VariantLedger)(nil)

// VariantLedger implements inventory.Ledger backed by PostgreSQL.
type VariantLedger struct {
	pool *pgxpool.Pool
}

// NewVariantLedger returns a VariantLedger that uses the given pool.
func NewVariantLedger(pool *pgxpool.Pool) *VariantLedger {
	return &VariantLedger{pool: pool}
}

// Decrement subtracts qty from the matching variant in one conditional
// UPDATE: the stock guard sits in the WHERE clause, so the row is only
// touched when it still covers qty and two concurrent drains of the last
// unit can never both match.
//
// When no row matches, diagnose separates product-missing, variant-missing
// and insufficient-stock. That re-read is informational only; the decrement
// has already definitively failed and retrying from the read would reopen
// the race the conditional UPDATE closes.
func (l *VariantLedger) Decrement(ctx context.Context, productID, size, color string, qty int) error {
	if qty <= 0 {
		return errors.Errorf("decrement quantity must be positive, got %d", qty)
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock - $4
		WHERE product_id = $1
		  AND lower(size) = lower($2)
		  AND lower(color) = lower($3)
		  AND stock >= $4`,
		productID, size, color, qty,
	)
	if err != nil {
		return fmt.Errorf("decrementing stock for %s %s/%s: %w", productID, size, color, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	return l.diagnose(ctx, productID, size, color, qty)
}

func (l *VariantLedger) diagnose(ctx context.Context, productID, size, color string, qty int) error {
	var available int
	err := l.pool.QueryRow(ctx, `
		SELECT stock FROM product_variants
		WHERE product_id = $1
		  AND lower(size) = lower($2)
		  AND lower(color) = lower($3)`,
		productID, size, color,
	).Scan(&available)
	if err == nil {
		return &inventory.OutOfStockError{
			ProductID: productID,
			Size:      size,
			Color:     color,
			Available: available,
			Requested: qty,
		}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("diagnosing failed decrement for %s %s/%s: %w", productID, size, color, err)
	}

	var productExists bool
	err = l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID,
	).Scan(&productExists)
	if err != nil {
		return fmt.Errorf("diagnosing failed decrement for %s: %w", productID, err)
	}
	if !productExists {
		return &inventory.ProductNotFoundError{ProductID: productID}
	}
	return &inventory.VariantNotFoundError{ProductID: productID, Size: size, Color: color}
}
