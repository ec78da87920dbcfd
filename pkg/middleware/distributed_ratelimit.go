package middleware

import (
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/practicehub/practicehub/pkg/observability"
)

// DistributedRateLimiter enforces a fixed-window limit shared across
// instances through Redis. When Redis is unreachable it fails open: losing
// the cache tier must not take authorization down with it.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
	logger *observability.Logger
}

// NewDistributedRateLimiter creates a Redis-backed rate limiter.
// logger may be nil.
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, logger *observability.Logger) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: "ratelimit:",
		logger: logger,
	}
}

// Allow reports whether a request under the given key may proceed.
// The error is non-nil when Redis failed and the decision fell open.
func (rl *DistributedRateLimiter) Allow(r *http.Request, key string) (bool, error) {
	ctx := r.Context()
	redisKey := rl.prefix + key

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow+rl.config.BurstSize), nil
}

// Handler wraps an HTTP handler with distributed rate limiting
func (rl *DistributedRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := rl.Allow(r, ClientKey(r))
		if err != nil && rl.logger != nil {
			rl.logger.WithError(err).Warn("Rate limiter store unreachable, failing open")
		}
		if !allowed {
			writeRateLimited(w, rl.config.WindowDuration)
			return
		}
		next.ServeHTTP(w, r)
	})
}
