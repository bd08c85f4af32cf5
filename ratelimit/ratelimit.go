// Package ratelimit provides per-domain request throttling.
//
// Each domain gets its own token bucket, created lazily on first use with
// the default rate and burst unless an explicit limit was set. Waiting is
// context-aware, so a cancelled fetch never sits in the queue.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limit describes the token bucket parameters for a domain.
type Limit struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Throttler applies per-domain rate limits.
type Throttler struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]Limit
	def      Limit
	logger   *zap.Logger
}

// NewThrottler creates a throttler with the given default limit. Domains
// without an explicit override share the default.
func NewThrottler(defaultRPS float64, defaultBurst int, logger *zap.Logger) *Throttler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttler{
		limiters: make(map[string]*rate.Limiter),
		limits:   make(map[string]Limit),
		def:      Limit{RequestsPerSecond: defaultRPS, BurstSize: defaultBurst},
		logger:   logger,
	}
}

// DomainOf extracts the throttling key from a URL. The key is the host
// including the port when present, so "example.com" and "example.com:8443"
// are limited independently.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Host != "" {
		return u.Host
	}
	// Fallback for URLs the parser rejects
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

// SetDomainLimit overrides the rate limit for a specific domain. The
// domain's bucket is replaced, starting full.
func (t *Throttler) SetDomainLimit(domain string, rps float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	t.mu.Lock()
	t.limits[domain] = Limit{RequestsPerSecond: rps, BurstSize: burst}
	t.limiters[domain] = rate.NewLimiter(rate.Limit(rps), burst)
	t.mu.Unlock()

	t.logger.Debug("domain rate limit set",
		zap.String("domain", domain),
		zap.Float64("rps", rps),
		zap.Int("burst", burst))
}

// DomainLimit returns the effective limit for a domain.
func (t *Throttler) DomainLimit(domain string) Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.limits[domain]; ok {
		return l
	}
	return t.def
}

// ReduceDomainLimit halves the domain's current rate and burst, flooring
// burst at 1. Used after a 429 to back off the offending domain without
// touching others.
func (t *Throttler) ReduceDomainLimit(domain string) Limit {
	t.mu.Lock()
	cur, ok := t.limits[domain]
	if !ok {
		cur = t.def
	}
	next := Limit{
		RequestsPerSecond: cur.RequestsPerSecond / 2,
		BurstSize:         cur.BurstSize / 2,
	}
	if next.BurstSize < 1 {
		next.BurstSize = 1
	}
	t.limits[domain] = next
	if lim, ok := t.limiters[domain]; ok {
		lim.SetLimit(rate.Limit(next.RequestsPerSecond))
		lim.SetBurst(next.BurstSize)
	} else {
		t.limiters[domain] = rate.NewLimiter(rate.Limit(next.RequestsPerSecond), next.BurstSize)
	}
	t.mu.Unlock()

	t.logger.Debug("domain rate limit reduced",
		zap.String("domain", domain),
		zap.Float64("rps", next.RequestsPerSecond),
		zap.Int("burst", next.BurstSize))
	return next
}

// Throttle blocks until the domain's bucket allows one request or the
// context is cancelled.
func (t *Throttler) Throttle(ctx context.Context, rawURL string) error {
	domain := DomainOf(rawURL)
	return t.limiterFor(domain).Wait(ctx)
}

func (t *Throttler) limiterFor(domain string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lim, ok := t.limiters[domain]; ok {
		return lim
	}
	l, ok := t.limits[domain]
	if !ok {
		l = t.def
	}
	lim := rate.NewLimiter(rate.Limit(l.RequestsPerSecond), l.BurstSize)
	t.limiters[domain] = lim
	return lim
}
