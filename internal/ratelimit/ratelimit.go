// Package ratelimit provides a per-client request limiter for the API.
//
// Each key (a client address) gets a fixed window that opens on its first
// request and lasts Window. At most Max requests pass inside one window;
// the rest are refused until the window closes and a new one opens with a
// full allowance. Keys whose window has closed are dropped from
// memory.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages per-key rate limiting.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	max      int
	window   time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter *rate.Limiter
	start   time.Time // when the current window opened
}

// Decision describes the outcome of one Allow call, with what a client
// needs to pace itself.
type Decision struct {
	Allowed   bool
	Limit     int           // requests per window
	Remaining int           // requests left in the current window
	Reset     time.Duration // until the current window closes
	RetryIn   time.Duration // until the next request would pass; zero when Allowed
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing max requests per window for each key and
// starts the goroutine that evicts expired keys. Call Stop when done.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window),
		max:      max,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.cleanup()

	return l
}

// Max returns the number of requests allowed per window.
func (l *Limiter) Max() int { return l.max }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow consumes one request for key if its window has room.
//
// The bucket refills one token per window and is replaced whenever a
// window closes, so it never gains a whole token mid-window.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok || !now.Before(v.start.Add(l.window)) {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.max), start: now}
		l.visitors[key] = v
	}

	allowed := v.limiter.AllowN(now, 1)
	reset := v.start.Add(l.window).Sub(now)

	d := Decision{
		Allowed:   allowed,
		Limit:     l.max,
		Remaining: int(math.Max(0, math.Floor(v.limiter.TokensAt(now)))),
		Reset:     reset,
	}
	if !allowed {
		d.RetryIn = reset
	}
	return d
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// cleanup evicts expired keys once per window until Stop is called.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictExpired()
		}
	}
}

// evictExpired drops keys whose window closed. The next request from such a
// key opens a new window anyway.
func (l *Limiter) evictExpired() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if !now.Before(v.start.Add(l.window)) {
			delete(l.visitors, key)
		}
	}
}
