// Package metrics counts what the fetch engine does. The Recorder is an
// explicit constructor dependency of the client rather than a global, so
// callers choose between the in-memory recorder, their own implementation,
// or Nop.
package metrics

import "sync/atomic"

// Recorder receives fetch engine events.
type Recorder interface {
	// RequestStarted is called once per attempt.
	RequestStarted(domain string)
	// RequestSucceeded is called on a 200 with the attempt latency in
	// milliseconds.
	RequestSucceeded(domain string, latencyMS int64)
	// RequestRetried is called before a retry sleep, with the cause:
	// "rate_limited", "server_error", "blocked", "timeout", "connection".
	RequestRetried(domain, cause string)
	// RequestFailed is called when a fetch gives up: retries exhausted or
	// a terminal status.
	RequestFailed(domain string)
	// RateLimitReduced is called when a 429 halves a domain's limits.
	RateLimitReduced(domain string)
	// FingerprintInvalidated is called when a 403 discards the cached
	// browser identity.
	FingerprintInvalidated()
}

// Counters is an in-memory Recorder using atomics.
type Counters struct {
	Started                 int64
	Succeeded               int64
	Retried                 int64
	Failed                  int64
	RateLimitReductions     int64
	FingerprintsInvalidated int64
	TotalLatencyMS          int64
}

// NewCounters returns a zeroed in-memory recorder.
func NewCounters() *Counters { return &Counters{} }

func (c *Counters) RequestStarted(string) { atomic.AddInt64(&c.Started, 1) }

func (c *Counters) RequestSucceeded(_ string, latencyMS int64) {
	atomic.AddInt64(&c.Succeeded, 1)
	atomic.AddInt64(&c.TotalLatencyMS, latencyMS)
}

func (c *Counters) RequestRetried(string, string) { atomic.AddInt64(&c.Retried, 1) }

func (c *Counters) RequestFailed(string) { atomic.AddInt64(&c.Failed, 1) }

func (c *Counters) RateLimitReduced(string) { atomic.AddInt64(&c.RateLimitReductions, 1) }

func (c *Counters) FingerprintInvalidated() { atomic.AddInt64(&c.FingerprintsInvalidated, 1) }

// Snapshot returns a consistent-enough copy for reporting.
func (c *Counters) Snapshot() Counters {
	return Counters{
		Started:                 atomic.LoadInt64(&c.Started),
		Succeeded:               atomic.LoadInt64(&c.Succeeded),
		Retried:                 atomic.LoadInt64(&c.Retried),
		Failed:                  atomic.LoadInt64(&c.Failed),
		RateLimitReductions:     atomic.LoadInt64(&c.RateLimitReductions),
		FingerprintsInvalidated: atomic.LoadInt64(&c.FingerprintsInvalidated),
		TotalLatencyMS:          atomic.LoadInt64(&c.TotalLatencyMS),
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) RequestStarted(string)          {}
func (Nop) RequestSucceeded(string, int64) {}
func (Nop) RequestRetried(string, string)  {}
func (Nop) RequestFailed(string)           {}
func (Nop) RateLimitReduced(string)        {}
func (Nop) FingerprintInvalidated()        {}
