package guard

import (
	"context"
	"sync"
	"time"
)

// RateLimitResult is the outcome of one rate-limit check. Derived per call,
// never persisted.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// WindowStore answers whether an identifier is allowed one more request in a
// tier right now. Implementations never fail a request on their own errors:
// the memory store has none, the Redis store fails open.
type WindowStore interface {
	Check(ctx context.Context, tier Tier, identifier string) RateLimitResult
	Reset(ctx context.Context, identifier string)
}

// MemoryWindowStore keeps fixed-window counters in process memory, one live
// window per (tier, identifier). Single-process only: two API instances each
// grant the full budget. Swap in the Redis store for shared counters.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*window
	tiers   TierSet
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// StoreOption configures a MemoryWindowStore.
type StoreOption func(*MemoryWindowStore)

// WithClock replaces the store's time source. Tests use this to step through
// window boundaries.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

// NewMemoryWindowStore creates an in-memory window store over the given tiers.
func NewMemoryWindowStore(tiers TierSet, opts ...StoreOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows: make(map[string]*window),
		tiers:   tiers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check counts one request against the identifier's current window. A window
// whose resetAt has passed is replaced with a fresh one before the increment,
// so bursts straddling a boundary are accepted (fixed-window trade-off).
func (s *MemoryWindowStore) Check(_ context.Context, tier Tier, identifier string) RateLimitResult {
	cfg := s.tiers.lookup(tier)
	key := string(tier) + ":" + identifier
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(cfg.Window)}
		s.windows[key] = w
	}
	w.count++

	remaining := cfg.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   w.count <= cfg.MaxRequests,
		Limit:     cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}
}

// Reset clears the identifier's windows across all tiers. Idempotent.
func (s *MemoryWindowStore) Reset(_ context.Context, identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tier := range s.tiers {
		delete(s.windows, string(tier)+":"+identifier)
	}
}

// Sweep removes windows whose resetAt is already in the past. Check self-heals
// expired windows on access, so this only bounds memory.
func (s *MemoryWindowStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// StartJanitor sweeps expired windows on a fixed interval until ctx is done.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}
