package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pmitsakas/thesisflow/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
}

// NewRedisLimiter returns nil for a nil client; a nil limiter allows everything.
func NewRedisLimiter(client redis.Scripter) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l == nil || key == "" || limit <= 0 || window <= 0 {
		return true, nil
	}

	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	allowed, err := l.script.Run(ctx, l.client, []string{key}, ttl, limit).Int64()
	if err != nil {
		return true, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// RateLimit throttles the authenticated caller per scope. Limiter errors
// fail open.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration, collector *metrics.Collector, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if limiter == nil || !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("thesisflow:ratelimit:%s:%s", scope, actor.UserID)
			allowed, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable")
			}
			if !allowed {
				collector.RateLimited(scope)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				abort(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
