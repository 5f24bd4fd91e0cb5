package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst then blocks", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 3)

		assert.True(t, rl.Allow("client-1"))
		assert.True(t, rl.Allow("client-1"))
		assert.True(t, rl.Allow("client-1"))
		assert.False(t, rl.Allow("client-1"))
	})

	t.Run("separate buckets per client", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)

		assert.True(t, rl.Allow("client-1"))
		assert.False(t, rl.Allow("client-1"))
		assert.True(t, rl.Allow("client-2"))
	})

	t.Run("remaining counts down", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 5)

		assert.Equal(t, 5, rl.Remaining("client-1"))
		rl.Allow("client-1")
		rl.Allow("client-1")
		assert.Equal(t, 3, rl.Remaining("client-1"))
	})

	t.Run("cleanup drops idle buckets", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)
		rl.idleTTL = time.Millisecond
		rl.Allow("client-1")
		assert.False(t, rl.Allow("client-1"))

		time.Sleep(5 * time.Millisecond)
		rl.Cleanup()

		assert.True(t, rl.Allow("client-1"))
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 50)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if rl.Allow("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(0.001, 2)))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		return w
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do().Code)

	blocked := do()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimitByKey(NewRateLimiter(0.001, 1), func(c *gin.Context) string {
		return c.GetHeader("X-Client")
	}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for _, tc := range []struct {
		client string
		want   int
	}{
		{"a", http.StatusOK},
		{"a", http.StatusTooManyRequests},
		{"b", http.StatusOK},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Client", tc.client)
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "client %s", tc.client)
	}
}
