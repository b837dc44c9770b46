//go:build integration

package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipushop/checkout/internal/domain/order"
	"github.com/quipushop/checkout/internal/storage/postgres"
)

func intentLines() []order.LineItem {
	return []order.LineItem{
		{ProductID: "polo-classic", Size: "M", Color: "Blue", Quantity: 2, UnitPrice: decimal.RequireFromString("44.99")},
	}
}

func TestIntentStore_PutConsume(t *testing.T) {
	resetTables(t)
	store := postgres.NewIntentStore(pool, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ord-1", intentLines()))

	lines, ok, err := store.Consume(ctx, "ord-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "polo-classic", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("44.99").Equal(lines[0].UnitPrice))

	// A second consume of the same id finds nothing.
	_, ok, err = store.Consume(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntentStore_PutReplaces(t *testing.T) {
	resetTables(t)
	store := postgres.NewIntentStore(pool, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ord-1", intentLines()))
	require.NoError(t, store.Put(ctx, "ord-1", []order.LineItem{
		{ProductID: "denim-jacket", Size: "L", Color: "Indigo", Quantity: 1, UnitPrice: decimal.RequireFromString("129.90")},
	}))

	lines, ok, err := store.Consume(ctx, "ord-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, "denim-jacket", lines[0].ProductID)
}

func TestIntentStore_ConcurrentConsumeSingleWinner(t *testing.T) {
	resetTables(t)
	store := postgres.NewIntentStore(pool, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ord-1", intentLines()))

	const callers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, ok, err := store.Consume(ctx, "ord-1")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestIntentStore_ExpiredBehavesAsMissing(t *testing.T) {
	resetTables(t)
	store := postgres.NewIntentStore(pool, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ord-1", intentLines()))
	time.Sleep(100 * time.Millisecond)

	_, ok, err := store.Consume(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntentStore_PurgeExpired(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	shortLived := postgres.NewIntentStore(pool, 50*time.Millisecond)
	longLived := postgres.NewIntentStore(pool, time.Hour)

	require.NoError(t, shortLived.Put(ctx, "stale-1", intentLines()))
	require.NoError(t, shortLived.Put(ctx, "stale-2", intentLines()))
	require.NoError(t, longLived.Put(ctx, "fresh", intentLines()))

	time.Sleep(100 * time.Millisecond)

	purged, err := longLived.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	_, ok, err := longLived.Consume(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
