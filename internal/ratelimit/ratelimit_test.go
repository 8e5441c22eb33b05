package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock so tests never sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestAllow_FixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(3, time.Minute, WithClock(clock.Now))
	defer l.Stop()

	for i, wantRemaining := range []int{2, 1, 0} {
		d := l.Allow("10.0.0.1")
		require.True(t, d.Allowed, "request %d should pass", i+1)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, wantRemaining, d.Remaining)
		assert.Equal(t, time.Minute, d.Reset)
		assert.Zero(t, d.RetryIn)
	}

	clock.Advance(40 * time.Second)
	d := l.Allow("10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 20*time.Second, d.Reset)
	assert.Equal(t, 20*time.Second, d.RetryIn)

	clock.Advance(19 * time.Second)
	assert.False(t, l.Allow("10.0.0.1").Allowed, "no token comes back before the window closes")

	clock.Advance(time.Second)
	d = l.Allow("10.0.0.1")
	assert.True(t, d.Allowed, "a new window opens with a full allowance")
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, time.Minute, d.Reset)
}

func TestAllow_NeverExceedsMaxPerWindow(t *testing.T) {
	const (
		max    = 100
		window = 15 * time.Minute
	)
	clock := newFakeClock()
	l := New(max, window, WithClock(clock.Now))
	defer l.Stop()

	// One request a second for three windows. Record when each passed.
	start := clock.Now()
	var passed []time.Time
	for i := 0; i < 3*int(window/time.Second); i++ {
		if l.Allow("198.51.100.1").Allowed {
			passed = append(passed, clock.Now())
		}
		clock.Advance(time.Second)
	}
	require.Len(t, passed, 3*max, "each window grants exactly max")

	for w := 0; w < 3; w++ {
		from := start.Add(time.Duration(w) * window)
		to := from.Add(window)
		n := 0
		for _, at := range passed {
			if !at.Before(from) && at.Before(to) {
				n++
			}
		}
		assert.Equal(t, max, n, "window %d", w)
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	clock := newFakeClock()
	l := New(1, time.Minute, WithClock(clock.Now))
	defer l.Stop()

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed, "b has its own bucket")
}

func TestEvictExpired(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Minute, WithClock(clock.Now))
	defer l.Stop()

	l.Allow("old")
	clock.Advance(45 * time.Second)
	l.Allow("recent")
	require.Equal(t, 2, l.Len())

	clock.Advance(30 * time.Second)
	l.evictExpired()

	assert.Equal(t, 1, l.Len(), "only the key whose window closed is dropped")
}

func TestStop_Idempotent(t *testing.T) {
	l := New(1, time.Second)
	l.Stop()
	l.Stop()
}

func TestMiddleware(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 15*time.Minute, WithClock(clock.Now))
	defer l.Stop()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := Middleware(l, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/favorites", nil)
		req.RemoteAddr = remoteAddr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := do("192.0.2.1:5000")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2;w=900", first.Header().Get("RateLimit-Policy"))
	assert.Equal(t, "2", first.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "900", first.Header().Get("RateLimit-Reset"))
	assert.Empty(t, first.Header().Get("X-RateLimit-Limit"), "legacy headers are not sent")

	// Different port, same client address: same bucket.
	assert.Equal(t, http.StatusOK, do("192.0.2.1:6000").Code)

	blocked := do("192.0.2.1:7000")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "900", blocked.Header().Get("Retry-After"))
	assert.Equal(t, "900", blocked.Header().Get("RateLimit-Reset"))
	assert.Contains(t, blocked.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusOK, do("198.51.100.7:5000").Code, "another client is unaffected")
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "203.0.113.9:1234"
	assert.Equal(t, "203.0.113.9", clientKey(req))

	req.RemoteAddr = "203.0.113.9" // after chi's RealIP
	assert.Equal(t, "203.0.113.9", clientKey(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientKey(req))
}
