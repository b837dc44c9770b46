//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipushop/checkout/internal/domain/product"
	"github.com/quipushop/checkout/internal/storage/postgres"
)

func TestProductRepository_GetByID(t *testing.T) {
	resetTables(t)
	seedProduct(t, "polo-classic", "49.99",
		[3]any{"M", "Blue", 3},
		[3]any{"L", "Black", 5},
	)
	repo := postgres.NewProductRepository(pool)

	p, err := repo.GetByID(context.Background(), "polo-classic")
	require.NoError(t, err)
	assert.Equal(t, "polo-classic", p.ID)
	assert.True(t, decimal.RequireFromString("49.99").Equal(p.Price))
	require.Len(t, p.Variants, 2)
}

func TestProductRepository_GetByIDMissing(t *testing.T) {
	resetTables(t)
	repo := postgres.NewProductRepository(pool)

	_, err := repo.GetByID(context.Background(), "ghost")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductRepository_GetByIDs(t *testing.T) {
	resetTables(t)
	seedProduct(t, "polo-classic", "49.99", [3]any{"M", "Blue", 3})
	seedProduct(t, "denim-jacket", "129.90", [3]any{"L", "Indigo", 2})
	repo := postgres.NewProductRepository(pool)

	// Missing IDs are simply absent from the batch result.
	products, err := repo.GetByIDs(context.Background(), []string{"polo-classic", "denim-jacket", "ghost"})
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestProductRepository_ProductWithoutVariants(t *testing.T) {
	resetTables(t)
	seedProduct(t, "gift-card", "50.00")
	repo := postgres.NewProductRepository(pool)

	p, err := repo.GetByID(context.Background(), "gift-card")
	require.NoError(t, err)
	assert.Empty(t, p.Variants)
}

func TestProductRepository_List(t *testing.T) {
	resetTables(t)
	seedProduct(t, "polo-classic", "49.99", [3]any{"M", "Blue", 3})
	seedProduct(t, "denim-jacket", "129.90", [3]any{"L", "Indigo", 2})
	repo := postgres.NewProductRepository(pool)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	// Ordered by ID.
	assert.Equal(t, "denim-jacket", products[0].ID)
	assert.Equal(t, "polo-classic", products[1].ID)
}
