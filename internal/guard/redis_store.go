package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindowStore shares fixed-window counters across processes via
// INCR + EXPIRE. On any Redis error it fails open: the request is allowed and
// the error is logged, so a counter outage never turns into a full outage.
type RedisWindowStore struct {
	client *redis.Client
	tiers  TierSet
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisWindowStore creates a Redis-backed window store over the given tiers.
func NewRedisWindowStore(client *redis.Client, tiers TierSet, logger *slog.Logger) *RedisWindowStore {
	return &RedisWindowStore{client: client, tiers: tiers, logger: logger, now: time.Now}
}

func (s *RedisWindowStore) key(tier Tier, identifier string) string {
	return "ratelimit:" + string(tier) + ":" + identifier
}

// Check increments the identifier's counter, setting the window TTL when the
// counter is created. Expiry in Redis replaces the in-memory sweep.
func (s *RedisWindowStore) Check(ctx context.Context, tier Tier, identifier string) RateLimitResult {
	cfg := s.tiers.lookup(tier)
	key := s.key(tier, identifier)
	now := s.now()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn("rate limit counter unavailable, allowing request", "error", err, "key", key)
		return RateLimitResult{Allowed: true, Limit: cfg.MaxRequests, Remaining: cfg.MaxRequests - 1, ResetAt: now.Add(cfg.Window)}
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, cfg.Window).Err(); err != nil {
			s.logger.Warn("rate limit expire failed", "error", err, "key", key)
		}
	}

	resetAt := now.Add(cfg.Window)
	if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		resetAt = now.Add(ttl)
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   int(count) <= cfg.MaxRequests,
		Limit:     cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Reset deletes the identifier's counters across all tiers. Idempotent.
func (s *RedisWindowStore) Reset(ctx context.Context, identifier string) {
	for tier := range s.tiers {
		if err := s.client.Del(ctx, s.key(tier, identifier)).Err(); err != nil {
			s.logger.Warn("rate limit reset failed", "error", err, "identifier", identifier)
		}
	}
}
