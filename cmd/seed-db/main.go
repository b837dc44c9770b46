// Command seed-db loads a development catalog (products with variants) and a
// back-office API key into the database.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quipushop/checkout/internal/storage/postgres"
)

type variantJSON struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Variants []variantJSON   `json:"variants"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "back-office API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	raw, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrapf(err, "read %s", productsFile)
	}
	var products []productJSON
	if err := json.Unmarshal(raw, &products); err != nil {
		return errors.Wrap(err, "parse products")
	}

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, category)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price, category = EXCLUDED.category`,
			p.ID, p.Name, p.Price, p.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, v := range p.Variants {
			_, err := pool.Exec(ctx, `
				INSERT INTO product_variants (product_id, size, color, stock)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (product_id, size, color) DO UPDATE
				SET stock = EXCLUDED.stock`,
				p.ID, v.Size, v.Color, v.Stock,
			)
			if err != nil {
				return errors.Wrapf(err, "upsert variant %s %s/%s", p.ID, v.Size, v.Color)
			}
		}
	}
	slog.Info("seeded products", slog.Int("count", len(products)))

	if apiKey != "" {
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(apiKey))
		hash := hex.EncodeToString(mac.Sum(nil))

		_, err := pool.Exec(ctx, `
			INSERT INTO api_keys (id, key_hash, name, scopes)
			VALUES ($1, $2, 'seed', '{orders:write}')
			ON CONFLICT (key_hash) DO NOTHING`,
			uuid.New().String(), hash,
		)
		if err != nil {
			return errors.Wrap(err, "seed api key")
		}
		slog.Info("seeded api key")
	}

	return nil
}
