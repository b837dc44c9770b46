// Package intent holds cart snapshots for in-flight payments. An intent is
// written when a form token is issued and consumed exactly once when the
// gateway confirms a paid outcome for its order ID.
package intent

import (
	"context"
	"time"

	"github.com/quipushop/checkout/internal/domain/order"
)

// DefaultTTL bounds how long an intent outlives its payment attempt. Intents
// older than the gateway's callback window are purged.
const DefaultTTL = time.Hour

// Store associates order IDs with the cart lines captured when the payment
// intent was requested.
type Store interface {
	// Put stores the lines under orderID, replacing any previous snapshot.
	Put(ctx context.Context, orderID string, lines []order.LineItem) error
	// Consume atomically removes and returns the snapshot for orderID.
	// The read-and-delete is a single step so a redelivered confirmation
	// cannot spend the same snapshot twice. ok is false when no live
	// intent exists.
	Consume(ctx context.Context, orderID string) (lines []order.LineItem, ok bool, err error)
	// PurgeExpired evicts intents older than the TTL and returns how many
	// were removed.
	PurgeExpired(ctx context.Context) (int, error)
}
