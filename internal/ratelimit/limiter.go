// Package ratelimit provides per-identity sliding-window admission control
// for the order submission endpoint. Limiting is best-effort per process
// unless the Redis store is configured.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store counts hits per key within a window. Incr returns the number of
// hits recorded for the key in the current window, including this one.
// The window starts lazily at the first hit and resets after it expires.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
}

func New(store Store, limit int64, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow reports whether a call from the given identity is admitted. Store
// failures fail open: admission control protects against abuse, it must not
// take order intake down with it.
func (l *Limiter) Allow(ctx context.Context, identity string) bool {
	count, err := l.store.Incr(ctx, identity, l.window)
	if err != nil {
		log.Warn().Err(err).Str("identity", identity).Msg("ratelimit: store failure, admitting")
		return true
	}
	return count <= l.limit
}

type memoryEntry struct {
	count       int64
	windowStart time.Time
}

// MemoryStore is a process-local store guarded by a mutex. Entries are kept
// per distinct identity and are only reset lazily on the first hit after
// window expiry, so memory grows with the number of identities seen.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. now may be nil, in which case
// time.Now is used; tests inject a fake clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.Sub(entry.windowStart) > window {
		s.entries[key] = &memoryEntry{count: 1, windowStart: now}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}
