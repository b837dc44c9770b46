package intent

import (
	"context"
	"sync"
	"time"

	"github.com/quipushop/checkout/internal/domain/order"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store. It does not survive restarts and is
// not shared across instances, which makes it suitable for tests and
// single-node deployments only; production wiring uses the durable store.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	lines     []order.LineItem
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Put stores the lines under orderID, replacing any previous snapshot.
func (s *MemoryStore) Put(_ context.Context, orderID string, lines []order.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[orderID] = memoryEntry{
		lines:     lines,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Consume removes and returns the snapshot for orderID under a single lock,
// so at most one caller observes it. Expired entries behave as missing.
func (s *MemoryStore) Consume(_ context.Context, orderID string) ([]order.LineItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[orderID]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, orderID)
	if s.now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.lines, true, nil
}

// PurgeExpired evicts intents past their TTL.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	purged := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

// StartJanitor purges expired intents from store at the given interval until
// ctx is cancelled. onPurge, when non-nil, receives the purge result.
func StartJanitor(ctx context.Context, store Store, interval time.Duration, onPurge func(int, error)) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.PurgeExpired(ctx)
				if onPurge != nil {
					onPurge(n, err)
				}
			}
		}
	}()
}
