package client

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockcloak/stockcloak/antidetect"
	"github.com/stockcloak/stockcloak/backoff"
	"github.com/stockcloak/stockcloak/config"
	"github.com/stockcloak/stockcloak/dns"
	"github.com/stockcloak/stockcloak/metrics"
	"github.com/stockcloak/stockcloak/ratelimit"
)

const maxConnectTimeout = 10 * time.Second

// Client fetches URLs with retries, adapting its behavior to what the
// servers send back.
type Client struct {
	cfg       *config.Config
	coord     *antidetect.Coordinator
	transport Transport
	resolver  *dns.Cache
	logger    *zap.Logger
	recorder  metrics.Recorder

	randMu sync.Mutex
	rng    *rand.Rand

	closeOnce sync.Once
}

// New creates a client from the configuration. Fails when the
// configuration is invalid, including proxy rotation enabled with an empty
// pool.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = metrics.Nop{}
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.transport == nil {
		o.transport = newTLSTransport(cfg.ConnectionPool.Limit, cfg.InsecureSkipVerify)
	}

	return &Client{
		cfg:       cfg,
		coord:     antidetect.NewCoordinatorWithRand(cfg, o.logger, o.rng),
		transport: o.transport,
		resolver:  dns.NewCache(cfg.DNSCacheTTL()),
		logger:    o.logger,
		recorder:  o.recorder,
		rng:       o.rng,
	}, nil
}

// Coordinator exposes the anti-detection state behind the client.
func (c *Client) Coordinator() *antidetect.Coordinator { return c.coord }

// Fetch performs a GET with the full anti-detection and retry pipeline.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, "GET", rawURL, nil)
}

// Do performs a request with the full pipeline. On a 200 the response
// carries the decompressed body. A non-200 outside the retryable set is
// returned as-is with a nil body and no error; the caller decides what a
// 404 means. When every attempt failed, the response has status 0, empty
// headers, and err is ErrRetriesExhausted.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	requestID := uuid.NewString()

	fetchURL := rawURL
	if method == "GET" && c.cfg.CacheBustingEnabled() {
		fetchURL = cacheBust(rawURL, time.Now().UnixMilli())
	}

	domain := ratelimit.DomainOf(fetchURL)
	host, err := hostOf(fetchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	bo := backoff.NewWithRand(backoff.Config{
		MaxRetries:      c.cfg.Retry.MaxRetries,
		BaseDelay:       c.cfg.BaseDelay(),
		MaxDelay:        c.cfg.MaxDelay(),
		ExponentialBase: c.cfg.Retry.ExponentialBase,
		Jitter:          c.cfg.JitterEnabled(),
	}, rand.New(rand.NewSource(c.randInt63())))

	log := c.logger.With(
		zap.String("request_id", requestID),
		zap.String("url", rawURL),
		zap.String("domain", domain))

	for attempt := 0; attempt <= c.cfg.Retry.MaxRetries; attempt++ {
		if err := c.preRequestDelay(ctx, attempt); err != nil {
			return nil, err
		}

		plan, err := c.coord.PrepareRequest(ctx, fetchURL)
		if err != nil {
			return nil, err
		}

		if err := c.resolver.Prefetch(ctx, host); err != nil {
			log.Warn("dns lookup failed", zap.Int("attempt", attempt), zap.Error(err))
			c.recorder.RequestRetried(domain, causeConnection)
			if err := c.retrySleep(ctx, bo, attempt, 1); err != nil {
				return nil, err
			}
			continue
		}

		timeout := c.coord.Analyzer().OptimalTimeout(domain)
		connect := timeout / 2
		if connect > maxConnectTimeout {
			connect = maxConnectTimeout
		}

		req := &Request{
			Method:         method,
			URL:            fetchURL,
			Body:           body,
			Headers:        plan.Headers,
			HeaderOrder:    plan.HeaderOrder,
			Proxy:          plan.Proxy,
			Fingerprint:    plan.Fingerprint,
			Timeout:        timeout,
			ConnectTimeout: connect,
			ConnParams:     c.coord.Analyzer().OptimalConnParams(domain),
		}

		c.recorder.RequestStarted(domain)
		start := time.Now()

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := c.transport.RoundTrip(reqCtx, req)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cause := causeConnection
			if isTimeout(err) {
				cause = causeTimeout
			} else if plan.Proxy != "" {
				c.coord.Rotator().MarkUnhealthy(plan.Proxy)
			}
			log.Warn("request failed",
				zap.Int("attempt", attempt),
				zap.String("cause", cause),
				zap.Error(err))
			c.recorder.RequestRetried(domain, cause)
			if err := c.retrySleep(ctx, bo, attempt, 1); err != nil {
				return nil, err
			}
			continue
		}

		latency := time.Since(start)
		c.coord.ObserveResponse(fetchURL, resp.Cookies, latency)

		switch resp.StatusCode {
		case 200:
			if plan.Proxy != "" {
				c.coord.Rotator().MarkHealthy(plan.Proxy)
			}
			c.recorder.RequestSucceeded(domain, latency.Milliseconds())
			log.Debug("request succeeded",
				zap.Int("attempt", attempt),
				zap.Duration("latency", latency))
			return resp, nil

		case 429:
			limit := c.coord.Throttler().ReduceDomainLimit(domain)
			c.recorder.RateLimitReduced(domain)
			c.recorder.RequestRetried(domain, causeRateLimited)
			log.Warn("rate limited by server",
				zap.Int("attempt", attempt),
				zap.Float64("new_rps", limit.RequestsPerSecond))
			if err := c.retrySleep(ctx, bo, attempt, 2); err != nil {
				return nil, err
			}

		case 502, 503, 504:
			c.recorder.RequestRetried(domain, causeServerError)
			log.Warn("server error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			if err := c.retrySleep(ctx, bo, attempt, 1); err != nil {
				return nil, err
			}

		case 403:
			c.coord.InvalidateFingerprint()
			c.recorder.FingerprintInvalidated()
			c.recorder.RequestRetried(domain, causeBlocked)
			log.Warn("request blocked, rotating identity", zap.Int("attempt", attempt))
			if err := c.retrySleep(ctx, bo, attempt, 3); err != nil {
				return nil, err
			}

		default:
			// Anything else is the server's final word on this URL.
			c.recorder.RequestFailed(domain)
			log.Debug("terminal status", zap.Int("status", resp.StatusCode))
			return &Response{
				StatusCode: resp.StatusCode,
				Headers:    resp.Headers,
				Cookies:    resp.Cookies,
			}, nil
		}
	}

	c.recorder.RequestFailed(domain)
	log.Warn("retries exhausted")
	return &Response{StatusCode: 0, Headers: map[string]string{}}, ErrRetriesExhausted
}

// Close releases pooled connections. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.transport.Close()
	})
}

// preRequestDelay sleeps a random interval before each attempt to avoid a
// mechanical request cadence. Retries wait longer than first attempts.
func (c *Client) preRequestDelay(ctx context.Context, attempt int) error {
	minD := float64(c.cfg.MinRequestDelay())
	maxD := float64(c.cfg.MaxRequestDelay())
	if attempt > 0 {
		minD *= 1.5
		maxD *= 2.0
	}
	if maxD <= 0 {
		return nil
	}

	c.randMu.Lock()
	d := time.Duration(minD + c.rng.Float64()*(maxD-minD))
	c.randMu.Unlock()

	return sleepCtx(ctx, d)
}

// retrySleep waits out the backoff before the next attempt. After the
// final attempt there is no next attempt, so it returns immediately
// instead of wasting a full backoff on a result that is already decided.
func (c *Client) retrySleep(ctx context.Context, bo *backoff.Policy, attempt int, multiplier time.Duration) error {
	if attempt >= c.cfg.Retry.MaxRetries {
		return nil
	}
	return sleepCtx(ctx, bo.Next()*multiplier)
}

func (c *Client) randInt63() int64 {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return c.rng.Int63()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// cacheBust appends a timestamp query parameter so intermediaries can't
// serve a cached copy. Applied once per fetch, not per attempt.
func cacheBust(rawURL string, nowMS int64) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_=%d", rawURL, sep, nowMS)
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host")
	}
	return u.Hostname(), nil
}
