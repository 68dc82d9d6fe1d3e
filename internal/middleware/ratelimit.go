// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// minSweepInterval bounds how often idle clients are dropped.
const minSweepInterval = time.Minute

// RateLimiter allows each client at most limit requests in any sliding
// window. Signed-in users are keyed by user id, everyone else by IP. The
// router keeps one for the login forms and one for the LLM-backed routes.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time // oldest first

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts a limiter and its background sweeper. Call Stop
// when done.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		stop:   make(chan struct{}),
	}
	go rl.sweepLoop(max(window, minSweepInterval))
	return rl
}

// Stop terminates the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now())
		case <-rl.stop:
			return
		}
	}
}

// take records a request for key at now. When the client is over the
// limit it records nothing and returns how long until the oldest request
// leaves the window.
func (rl *RateLimiter) take(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := prune(rl.hits[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}
	rl.hits[key] = append(recent, now)
	return true, 0
}

// sweep forgets clients whose requests have all left the window.
func (rl *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, ts := range rl.hits {
		if recent := prune(ts, cutoff); len(recent) == 0 {
			delete(rl.hits, key)
		} else {
			rl.hits[key] = recent
		}
	}
}

// prune drops timestamps at or before cutoff from a sorted slice.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Middleware rejects clients over the limit with 429 and a Retry-After
// header in whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateLimitKey(r)
		ok, wait := rl.take(key, time.Now())
		if !ok {
			slog.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "retry_in", wait)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			http.Error(w, "Too many requests, please slow down.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}

// rateLimitKey identifies the client a request is counted against.
func rateLimitKey(r *http.Request) string {
	if id := UserID(r.Context()); id != uuid.Nil {
		return "user:" + id.String()
	}
	return "ip:" + clientIP(r)
}

// clientIP returns the host of the connection's remote address.
// Forwarding headers are not read here: behind a trusted proxy the router
// rewrites RemoteAddr from them first.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
