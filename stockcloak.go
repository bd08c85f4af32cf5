// Package stockcloak provides an adaptive fetch engine for sites that
// actively resist scraping.
//
// Every fetch is rate limited per domain, sent with a coherent browser
// fingerprint down to the TLS handshake, and retried with exponential
// backoff. The engine adapts as it goes: a 429 halves the domain's rate
// limit, a 403 rotates the browser identity, and observed latency tunes
// future timeouts.
//
// Basic usage:
//
//	engine, err := stockcloak.New(stockcloak.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	resp, err := engine.Fetch(ctx, "https://example.com/product/123")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if resp.StatusCode == 200 {
//	    fmt.Println(string(resp.Body))
//	}
//
// With configuration from a file and wired observability:
//
//	cfg, err := stockcloak.LoadConfig("stockcloak.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	counters := metrics.NewCounters()
//	engine, err := stockcloak.New(cfg,
//	    stockcloak.WithLogger(logger),
//	    stockcloak.WithMetrics(counters),
//	)
package stockcloak

import (
	"context"

	"github.com/stockcloak/stockcloak/client"
	"github.com/stockcloak/stockcloak/config"
)

// Response is the result of a fetch.
type Response = client.Response

// Config is the engine configuration.
type Config = config.Config

// Option configures the engine.
type Option = client.Option

// Convenience re-exports so simple callers only import this package.
var (
	DefaultConfig = config.Default
	LoadConfig    = config.Load

	WithLogger    = client.WithLogger
	WithMetrics   = client.WithMetrics
	WithTransport = client.WithTransport
	WithRand      = client.WithRand

	// ErrRetriesExhausted is returned when every attempt at a URL failed
	// with a retryable error.
	ErrRetriesExhausted = client.ErrRetriesExhausted
)

// Engine fetches URLs with the full anti-detection pipeline.
type Engine struct {
	inner *client.Client
}

// New creates an engine. A nil config uses the defaults.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	inner, err := client.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner}, nil
}

// Fetch performs a GET through the pipeline.
func (e *Engine) Fetch(ctx context.Context, url string) (*Response, error) {
	return e.inner.Fetch(ctx, url)
}

// Do performs an arbitrary-method request through the pipeline.
func (e *Engine) Do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	return e.inner.Do(ctx, method, url, body)
}

// Close releases pooled connections. Safe to call more than once.
func (e *Engine) Close() {
	e.inner.Close()
}
