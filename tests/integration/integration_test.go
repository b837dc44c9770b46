//go:build integration

// Package integration runs the postgres-backed storage layer against a real
// database. The properties under test are the ones a unit test cannot prove:
// the conditional UPDATE never oversells under concurrency, the pending-intent
// consume is spendable exactly once, and the orders primary key rejects a
// duplicate materialization.
package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quipushop/checkout/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	err = dc.
		WaitForService("postgres", wait.ForHealthCheck()).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	pgContainer, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	mappedPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	databaseURL := fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable",
		host, mappedPort.Port())

	pool, err = postgres.NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	result := m.Run()

	pool.Close()
	if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
		log.Printf("compose down: %v", err)
	}
	return result
}

// resetTables truncates all mutable state between tests.
func resetTables(t *testing.T) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`TRUNCATE orders, pending_intents, product_variants, products, api_keys`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// seedProduct inserts a product with the given variants as (size, color, stock)
// triples.
func seedProduct(t *testing.T, id string, price string, variants ...[3]any) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx,
		`INSERT INTO products (id, name, price, category) VALUES ($1, $2, $3, 'test')`,
		id, id, price)
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
	for _, v := range variants {
		_, err := pool.Exec(ctx,
			`INSERT INTO product_variants (product_id, size, color, stock) VALUES ($1, $2, $3, $4)`,
			id, v[0], v[1], v[2])
		if err != nil {
			t.Fatalf("seed variant %v for %s: %v", v, id, err)
		}
	}
}

func variantStock(t *testing.T, productID, size, color string) int {
	t.Helper()
	var stock int
	err := pool.QueryRow(context.Background(), `
		SELECT stock FROM product_variants
		WHERE product_id = $1 AND lower(size) = lower($2) AND lower(color) = lower($3)`,
		productID, size, color,
	).Scan(&stock)
	if err != nil {
		t.Fatalf("read stock for %s %s/%s: %v", productID, size, color, err)
	}
	return stock
}
