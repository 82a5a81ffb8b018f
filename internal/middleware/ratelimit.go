package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	// KeyPrefix namespaces the counters of one limiter, e.g. "rl:auth".
	KeyPrefix string
}

// RateLimitMiddleware applies a fixed-window limit backed by Redis counters.
// Requests are keyed by account when authenticated, by client IP otherwise.
// An unreachable Redis lets traffic through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rateLimitKey(r, config.KeyPrefix)

			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Rate limit counter unavailable", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				if err := redisClient.Expire(ctx, key, config.Window).Err(); err != nil {
					logger.Warn("Failed to set rate limit window", zap.Error(err), zap.String("key", key))
				}
			}

			w.Header().Set("X-RateLimit-Limit", limit)

			if count <= int64(config.RequestsPerWindow) {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(config.RequestsPerWindow)-count, 10))
				next.ServeHTTP(w, r)
				return
			}

			retryAfter, err := redisClient.TTL(ctx, key).Result()
			if err != nil || retryAfter <= 0 {
				retryAfter = config.Window
			}
			logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
				zap.Int64("count", count),
			)

			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)))
			RespondWithError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		})
	}
}

func rateLimitKey(r *http.Request, prefix string) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return prefix + ":user:" + userID.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return prefix + ":ip:" + host
}
