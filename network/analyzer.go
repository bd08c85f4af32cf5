// Package network tracks observed latency per domain and derives request
// parameters from it.
package network

import (
	"sync"
	"time"
)

const (
	// maxSamples bounds the latency history kept per domain.
	maxSamples = 10

	minTimeout = 10 * time.Second
	maxTimeout = 60 * time.Second
)

// ConnParams are connection pool parameters tuned to a domain's observed
// speed.
type ConnParams struct {
	LimitPerHost     int
	KeepAliveTimeout time.Duration
}

// Analyzer records per-domain request latency and answers what timeout and
// pool settings fit each domain.
type Analyzer struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration

	defaultTimeout time.Duration
	defaultConn    ConnParams
}

// NewAnalyzer creates an empty analyzer with the standard defaults: 30s
// timeout, 5 connections per host, 30s keep-alive.
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithDefaults(30*time.Second, ConnParams{
		LimitPerHost:     5,
		KeepAliveTimeout: 30 * time.Second,
	})
}

// NewAnalyzerWithDefaults sets what a domain gets before any latency has
// been observed for it.
func NewAnalyzerWithDefaults(timeout time.Duration, conn ConnParams) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if conn.LimitPerHost <= 0 {
		conn.LimitPerHost = 5
	}
	if conn.KeepAliveTimeout <= 0 {
		conn.KeepAliveTimeout = 30 * time.Second
	}
	return &Analyzer{
		latencies:      make(map[string][]time.Duration),
		defaultTimeout: timeout,
		defaultConn:    conn,
	}
}

// Record appends a latency sample for the domain, evicting the oldest once
// the history is full.
func (a *Analyzer) Record(domain string, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := append(a.latencies[domain], latency)
	if len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	a.latencies[domain] = samples
}

// AverageLatency returns the mean of the recorded samples, or 0 with no
// history.
func (a *Analyzer) AverageLatency(domain string) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := a.latencies[domain]
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	return sum / time.Duration(len(samples))
}

// OptimalTimeout returns a request timeout derived from latency history:
// three times the average, clamped to [10s, 60s]. Without history it
// returns the configured default.
func (a *Analyzer) OptimalTimeout(domain string) time.Duration {
	avg := a.AverageLatency(domain)
	if avg <= 0 {
		return a.defaultTimeout
	}
	t := avg * 3
	if t < minTimeout {
		return minTimeout
	}
	if t > maxTimeout {
		return maxTimeout
	}
	return t
}

// OptimalConnParams returns pool settings tiered by observed speed: fast
// domains (<100ms) get more connections and longer keep-alive, slow ones
// (>500ms) get fewer and shorter.
func (a *Analyzer) OptimalConnParams(domain string) ConnParams {
	avg := a.AverageLatency(domain)

	params := a.defaultConn
	switch {
	case avg <= 0:
	case avg < 100*time.Millisecond:
		params.LimitPerHost = 8
		params.KeepAliveTimeout = 60 * time.Second
	case avg > 500*time.Millisecond:
		params.LimitPerHost = 3
		params.KeepAliveTimeout = 15 * time.Second
	}
	return params
}
