package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewMemoryRateLimiter()

		for i := 0; i < 5; i++ {
			allowed, _ := limiter.CheckLimit(ctx, "ip-1", 10, time.Minute)
			assert.True(t, allowed)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := NewMemoryRateLimiter()

		for i := 0; i < 5; i++ {
			limiter.CheckLimit(ctx, "ip-2", 5, time.Minute)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, "ip-2", 5, time.Minute)
		assert.False(t, allowed)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter := NewMemoryRateLimiter()

		for i := 0; i < 5; i++ {
			limiter.CheckLimit(ctx, "ip-a", 5, time.Minute)
		}

		allowed, _ := limiter.CheckLimit(ctx, "ip-b", 5, time.Minute)
		assert.True(t, allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewMemoryRateLimiter()

		allowed, _ := limiter.CheckLimit(ctx, "ip-3", 1, 50*time.Millisecond)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "ip-3", 1, 50*time.Millisecond)
		assert.False(t, allowed)

		time.Sleep(70 * time.Millisecond)
		allowed, _ = limiter.CheckLimit(ctx, "ip-3", 1, 50*time.Millisecond)
		assert.True(t, allowed)
	})
}

func TestIPRateLimitMiddleware(t *testing.T) {
	newHandler := func(limit int) http.Handler {
		mw := NewIPRateLimitMiddleware(NewMemoryRateLimiter(), limit, time.Minute, "send")
		return mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		handler := newHandler(2)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("POST", "/api/send-message", nil)
			req.RemoteAddr = "203.0.113.1:1111"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		req := httptest.NewRequest("POST", "/api/send-message", nil)
		req.RemoteAddr = "203.0.113.1:2222"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	})

	t.Run("different clients are independent", func(t *testing.T) {
		handler := newHandler(1)

		req := httptest.NewRequest("POST", "/api/send-message", nil)
		req.RemoteAddr = "203.0.113.1:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		req = httptest.NewRequest("POST", "/api/send-message", nil)
		req.RemoteAddr = "203.0.113.2:1111"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
