// internal/app/system/ratelimit/ratelimit.go

// Package ratelimit provides the in-process sliding-window limiter used for
// coarse IP throttling. Counts live in process memory, so in a multi-instance
// deployment each instance limits independently; that is an accepted
// limitation here. Where cross-instance correctness matters (email-keyed
// limits on the auth path) the durable limiter in store/authevents is used
// instead.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Result is the outcome of a Consume call. Callers branch on Allowed;
// RetryAfterSeconds is a back-off hint, populated only when blocked.
type Result struct {
	Allowed           bool
	Remaining         int
	RetryAfterSeconds int
}

// Limiter is a sliding-window rate limiter keyed by caller identity.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	limit   int           // max requests per window
	window  time.Duration // window duration
	cleanup time.Duration // how often to drop idle keys
	now     func() time.Time
}

// New creates a sliding-window limiter allowing limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		hits:    make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		cleanup: window * 2,
		now:     time.Now,
	}
	go l.cleanupLoop()
	return l
}

// Consume records a hit for key if the key is under its limit and reports the
// outcome. Hits whose age is >= the window are discarded before counting (a
// hit exactly one window old no longer counts).
func (l *Limiter) Consume(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := prune(l.hits[key], now.Add(-l.window))

	if len(kept) >= l.limit {
		l.hits[key] = kept
		// The window slides: the slot opens when the oldest retained hit
		// ages out.
		wait := kept[0].Add(l.window).Sub(now)
		return Result{Allowed: false, RetryAfterSeconds: ceilSeconds(wait)}
	}

	kept = append(kept, now)
	l.hits[key] = kept
	return Result{Allowed: true, Remaining: l.limit - len(kept)}
}

// Reset clears the window for a specific key. Useful after successful
// authentication.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

// prune drops timestamps at or before the cutoff. The slice is kept in
// arrival order, so the survivors are a suffix.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// cleanupLoop periodically removes keys whose hits have all aged out, to
// prevent unbounded growth.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := l.now().Add(-l.window)
		for key, ts := range l.hits {
			if kept := prune(ts, cutoff); len(kept) == 0 {
				delete(l.hits, key)
			} else {
				l.hits[key] = kept
			}
		}
		l.mu.Unlock()
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied
// requests), then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
