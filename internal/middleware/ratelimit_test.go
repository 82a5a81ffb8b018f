package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, limit int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := RateLimitMiddleware(client, RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            time.Minute,
		KeyPrefix:         "rl:auth",
	}, zap.NewNop())
	return limiter(okHandler()), mr
}

func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exactly the allowed number of signups pass per window", prop.ForAll(
		func(limit int, excess int) bool {
			handler, mr := newTestLimiter(t, limit)
			defer mr.Close()

			passed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/users/register", nil)
				req.RemoteAddr = "192.168.1.100"
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				switch w.Code {
				case http.StatusOK:
					passed++
				case http.StatusTooManyRequests:
					blocked++
					if w.Header().Get("Retry-After") == "" {
						return false
					}
				}
			}
			return passed == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimit_WindowResets(t *testing.T) {
	handler, mr := newTestLimiter(t, 1)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
		req.RemoteAddr = "10.0.0.1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, send())
}

func TestRateLimit_KeysByAccountWhenAuthenticated(t *testing.T) {
	handler, mr := newTestLimiter(t, 1)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, mr.Exists("rl:auth:user:"+userID.String()))
}

func TestRateLimit_FailsOpenWithoutRedis(t *testing.T) {
	handler, mr := newTestLimiter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/users/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_KeysAnonymousCallersByIP(t *testing.T) {
	handler, mr := newTestLimiter(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, mr.Exists("rl:auth:ip:10.1.2.3"))
}
