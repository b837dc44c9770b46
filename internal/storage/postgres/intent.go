package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipushop/checkout/internal/domain/order"
	"github.com/quipushop/checkout/internal/intent"
)

var _ intent.Store = (*IntentStore)(nil)

// IntentStore is the durable pending-intent store. Snapshots survive process
// restarts and a confirmation can land on any instance behind the balancer.
type IntentStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewIntentStore returns an IntentStore with the given TTL. A non-positive
// ttl falls back to intent.DefaultTTL.
func NewIntentStore(pool *pgxpool.Pool, ttl time.Duration) *IntentStore {
	if ttl <= 0 {
		ttl = intent.DefaultTTL
	}
	return &IntentStore{pool: pool, ttl: ttl}
}

// Put stores the cart snapshot under orderID, replacing any previous one.
func (s *IntentStore) Put(ctx context.Context, orderID string, lines []order.LineItem) error {
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshaling intent lines: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pending_intents (order_id, lines, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (order_id) DO UPDATE
		SET lines = EXCLUDED.lines, expires_at = EXCLUDED.expires_at`,
		orderID, linesJSON, s.ttl,
	)
	if err != nil {
		return fmt.Errorf("storing pending intent %q: %w", orderID, err)
	}
	return nil
}

// Consume deletes and returns the snapshot in a single statement, so only
// one caller can ever spend it. Expired rows are treated as missing; the
// janitor removes them later.
func (s *IntentStore) Consume(ctx context.Context, orderID string) ([]order.LineItem, bool, error) {
	var linesJSON []byte
	err := s.pool.QueryRow(ctx, `
		DELETE FROM pending_intents
		WHERE order_id = $1 AND expires_at > now()
		RETURNING lines`,
		orderID,
	).Scan(&linesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("consuming pending intent %q: %w", orderID, err)
	}

	var lines []order.LineItem
	if err := json.Unmarshal(linesJSON, &lines); err != nil {
		return nil, false, fmt.Errorf("unmarshaling intent lines for %q: %w", orderID, err)
	}
	return lines, true, nil
}

// PurgeExpired removes intents whose TTL has elapsed.
func (s *IntentStore) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pending_intents WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purging expired intents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
