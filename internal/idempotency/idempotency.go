// Package idempotency remembers which order an Idempotency-Key produced.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Pending marks a key whose first request is still in flight.
const Pending = "pending"

type Guard interface {
	// Claim reserves key. fresh is true when the caller owns it and must
	// finish with Complete or Release. Otherwise orderID is the recorded
	// result, or empty while the first request is still running.
	Claim(ctx context.Context, key string) (orderID string, fresh bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type memoryEntry struct {
	value   string
	expires time.Time
}

type MemoryGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if e, ok := g.entries[key]; ok && now.Before(e.expires) {
		if e.value == Pending {
			return "", false, nil
		}
		return e.value, false, nil
	}
	g.entries[key] = memoryEntry{value: Pending, expires: now.Add(g.ttl)}
	return "", true, nil
}

func (g *MemoryGuard) Complete(_ context.Context, key, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = memoryEntry{value: orderID, expires: g.now().Add(g.ttl)}
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}
