package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(max int, dur time.Duration) *rateLimiter {
	return &rateLimiter{
		cfg:     RateLimitConfig{Max: max, Window: dur},
		clients: make(map[string]*window),
	}
}

func TestAllow_UnderLimit(t *testing.T) {
	rl := newLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, ok := rl.allow("client", now)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	_, ok := rl.allow("client", now)
	assert.False(t, ok, "request over the limit should be rejected")
}

func TestAllow_PerKeyIsolation(t *testing.T) {
	rl := newLimiter(1, time.Minute)
	now := time.Now()

	_, ok := rl.allow("a", now)
	require.True(t, ok)
	_, ok = rl.allow("a", now)
	require.False(t, ok)

	// A different key has its own window.
	_, ok = rl.allow("b", now)
	assert.True(t, ok)
}

func TestAllow_SlidingWindowWeighting(t *testing.T) {
	rl := newLimiter(10, time.Minute)
	start := time.Now().Truncate(time.Minute)

	// Fill the first window completely.
	for i := 0; i < 10; i++ {
		_, ok := rl.allow("client", start)
		require.True(t, ok)
	}

	// Just into the next window the previous one still weighs almost fully.
	_, ok := rl.allow("client", start.Add(time.Minute+time.Second))
	assert.False(t, ok)

	// Near the end of the next window the previous count has mostly decayed.
	_, ok = rl.allow("client", start.Add(2*time.Minute-time.Second))
	assert.True(t, ok)
}

func TestAllow_FirstWindowAnchoredToGrid(t *testing.T) {
	rl := newLimiter(10, time.Minute)
	grid := time.Now().Truncate(time.Minute)

	// A client first seen mid-window still gets a window starting at the
	// grid boundary, not at the first request.
	resetAt, ok := rl.allow("client", grid.Add(45*time.Second))
	require.True(t, ok)
	assert.Equal(t, grid.Add(time.Minute), resetAt)

	// The rollover lands on the same grid.
	resetAt, ok = rl.allow("client", grid.Add(time.Minute+time.Second))
	require.True(t, ok)
	assert.Equal(t, grid.Add(2*time.Minute), resetAt)
}

func TestAllow_FullyExpiredWindowResets(t *testing.T) {
	rl := newLimiter(1, time.Minute)
	now := time.Now().Truncate(time.Minute)

	_, ok := rl.allow("client", now)
	require.True(t, ok)
	_, ok = rl.allow("client", now)
	require.False(t, ok)

	_, ok = rl.allow("client", now.Add(3*time.Minute))
	assert.True(t, ok)
}

func TestEvictStale(t *testing.T) {
	rl := newLimiter(1, time.Minute)
	now := time.Now()

	rl.allow("old", now)
	rl.allow("fresh", now.Add(2*time.Minute))
	rl.evictStale(now.Add(2*time.Minute + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "old")
	assert.Contains(t, rl.clients, "fresh")
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(ctx, RateLimitConfig{Max: 2, Window: time.Minute}),
	)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)

	rec := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client is unaffected.
	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIP(req))
}
