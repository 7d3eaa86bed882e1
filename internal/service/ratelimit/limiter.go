package ratelimit

import (
	"context"
	"fmt"
	"time"

	"Predictor/pkg/cache"
)

// Limiter is a fixed-window counter over a cache.Service, so the same limit holds
// across replicas when the cache is Redis.
type Limiter struct {
	store  cache.Service
	limit  int64
	window time.Duration
	prefix string
}

func New(store cache.Service, limit int64, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, prefix: "ratelimit"}
}

// Allow consumes one slot for key and reports whether the call is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := cache.GenerateKey(l.prefix, key)
	n, err := l.store.Increment(ctx, k)
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		if _, err := l.store.Expire(ctx, k, l.window); err != nil {
			// a counter without a TTL would throttle the key forever
			if derr := l.store.Delete(ctx, k); derr != nil {
				return false, fmt.Errorf("ratelimit expire: %w (delete: %v)", err, derr)
			}
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return n <= l.limit, nil
}
