// Command catalog-ingest bulk-loads gzipped catalog exports (one JSON
// document per line: product with variants) into the database. Files are
// parsed concurrently; rows are written with COPY.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/quipushop/checkout/internal/storage/postgres"
)

type variantLine struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

type productLine struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Variants []variantLine   `json:"variants"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog*.json.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "catalog*.json.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no catalog*.json.gz files in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Parse files concurrently; a single consumer owns the COPY batches.
	lines := make(chan productLine, 1024)
	g, gctx := errgroup.WithContext(ctx)

	for _, file := range files {
		g.Go(func() error {
			return parseFile(gctx, file, lines)
		})
	}
	go func() {
		_ = g.Wait()
		close(lines)
	}()

	total := 0
	batch := make([]productLine, 0, 1000)
	for p := range lines {
		batch = append(batch, p)
		if len(batch) == cap(batch) {
			if err := flush(ctx, pool, batch); err != nil {
				return err
			}
			total += len(batch)
			batch = batch[:0]
			slog.Info("progress", slog.Int("products", total))
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := flush(ctx, pool, batch); err != nil {
			return err
		}
		total += len(batch)
	}

	slog.Info("ingested products", slog.Int("count", total))
	return nil
}

func parseFile(ctx context.Context, path string, out chan<- productLine) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip %s", path)
	}
	defer gz.Close()

	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var p productLine
		if err := json.Unmarshal(line, &p); err != nil {
			return errors.Wrapf(err, "parse line in %s", path)
		}
		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Wrapf(sc.Err(), "scan %s", path)
}

func flush(ctx context.Context, pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}, batch []productLine) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	productRows := make([][]any, 0, len(batch))
	variantRows := make([][]any, 0, len(batch))
	for _, p := range batch {
		productRows = append(productRows, []any{p.ID, p.Name, p.Price, p.Category})
		for _, v := range p.Variants {
			variantRows = append(variantRows, []any{p.ID, v.Size, v.Color, v.Stock})
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"products"},
		[]string{"id", "name", "price", "category"},
		pgx.CopyFromRows(productRows),
	); err != nil {
		return errors.Wrap(err, "copy products")
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"product_variants"},
		[]string{"product_id", "size", "color", "stock"},
		pgx.CopyFromRows(variantRows),
	); err != nil {
		return errors.Wrap(err, "copy variants")
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}
