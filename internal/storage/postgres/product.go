package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quipushop/checkout/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products with their variants, ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.price, p.category,
		       COALESCE(v.size, ''), COALESCE(v.color, ''), COALESCE(v.stock, 0),
		       v.product_id IS NOT NULL
		FROM products p
		LEFT JOIN product_variants v ON v.product_id = p.id
		ORDER BY p.id, v.size, v.color`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// GetByID returns a single product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	products, err := r.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, product.ErrNotFound
	}
	return &products[0], nil
}

// GetByIDs batch-fetches products by identifier. Missing IDs are simply
// absent from the result; the caller decides whether that is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.price, p.category,
		       COALESCE(v.size, ''), COALESCE(v.color, ''), COALESCE(v.stock, 0),
		       v.product_id IS NOT NULL
		FROM products p
		LEFT JOIN product_variants v ON v.product_id = p.id
		WHERE p.id = ANY($1)
		ORDER BY p.id, v.size, v.color`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]product.Product, error) {
	var (
		products []product.Product
		current  *product.Product
	)
	for rows.Next() {
		var (
			id, name, category string
			price              decimal.Decimal
			size, color        string
			stock              int
			hasVariant         bool
		)
		if err := rows.Scan(&id, &name, &price, &category, &size, &color, &stock, &hasVariant); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}

		if current == nil || current.ID != id {
			products = append(products, product.Product{
				ID:       id,
				Name:     name,
				Price:    price,
				Category: category,
			})
			current = &products[len(products)-1]
		}
		if hasVariant {
			current.Variants = append(current.Variants, product.Variant{
				Size:  size,
				Color: color,
				Stock: stock,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating product rows")
	}
	return products, nil
}
