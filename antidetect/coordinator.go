// Package antidetect coordinates the anti-detection measures applied to
// every request: rate limiting, browser fingerprinting, header assembly,
// cookie persistence, proxy rotation, and latency tracking.
package antidetect

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stockcloak/stockcloak/config"
	"github.com/stockcloak/stockcloak/cookies"
	"github.com/stockcloak/stockcloak/fingerprint"
	"github.com/stockcloak/stockcloak/network"
	"github.com/stockcloak/stockcloak/proxy"
	"github.com/stockcloak/stockcloak/ratelimit"
)

var referers = []string{
	"https://www.google.nl/",
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://www.reddit.com/",
	"https://www.youtube.com/",
	"https://www.facebook.com/",
	"https://twitter.com/",
}

// defaultDistribution matches observed desktop browser market share
// closely enough to blend in.
var defaultDistribution = map[string]float64{
	fingerprint.Chrome:  0.65,
	fingerprint.Firefox: 0.20,
	fingerprint.Safari:  0.10,
	fingerprint.Edge:    0.05,
}

// RequestPlan is everything the transport needs to send one disguised
// request.
type RequestPlan struct {
	Headers     map[string]string
	HeaderOrder []string
	Proxy       string
	Fingerprint *fingerprint.Fingerprint
}

// Coordinator owns the anti-detection components and prepares requests
// with them.
type Coordinator struct {
	throttler *ratelimit.Throttler
	rotator   *proxy.Rotator
	cookies   *cookies.Store
	generator *fingerprint.Generator
	analyzer  *network.Analyzer
	logger    *zap.Logger

	distribution map[string]float64
	families     []string // distribution keys in stable order

	mu               sync.Mutex
	rng              *rand.Rand
	cached           *fingerprint.Fingerprint
	lastRotation     time.Time
	rotationInterval time.Duration
	now              func() time.Time
}

// NewCoordinator builds a coordinator from configuration, seeding its rand
// source from the current time.
func NewCoordinator(cfg *config.Config, logger *zap.Logger) *Coordinator {
	return NewCoordinatorWithRand(cfg, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewCoordinatorWithRand is NewCoordinator with an explicit rand source so
// tests can pin fingerprint and header choices.
func NewCoordinatorWithRand(cfg *config.Config, logger *zap.Logger, rng *rand.Rand) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	throttler := ratelimit.NewThrottler(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize, logger)
	for domain, limit := range cfg.RateLimit.DomainRateLimits {
		throttler.SetDomainLimit(domain, limit.RequestsPerSecond, limit.BurstSize)
	}

	rotator := proxy.NewRotator(proxy.Config{
		Enabled:            cfg.Proxy.Enabled,
		Proxies:            cfg.Proxy.Proxies,
		MaxConsecutiveUses: cfg.Proxy.MaxUses,
		RotationInterval:   cfg.ProxyRotationInterval(),
	}, logger)

	dist := cfg.Fingerprint.BrowserDistribution
	if len(dist) == 0 {
		dist = defaultDistribution
	}
	families := make([]string, 0, len(dist))
	for f := range dist {
		families = append(families, f)
	}
	sort.Strings(families)

	return &Coordinator{
		throttler: throttler,
		rotator:   rotator,
		cookies:   cookies.NewStore(cfg.CookieClearInterval(), logger),
		generator: fingerprint.NewGeneratorWithRand(rng),
		analyzer: network.NewAnalyzerWithDefaults(cfg.RequestTimeout(), network.ConnParams{
			LimitPerHost:     cfg.ConnectionPool.LimitPerHost,
			KeepAliveTimeout: cfg.KeepAliveTimeout(),
		}),
		logger:           logger,
		distribution:     dist,
		families:         families,
		rng:              rng,
		rotationInterval: cfg.FingerprintRotation(),
		now:              time.Now,
	}
}

// Throttler exposes the per-domain rate limiter so the client can tighten
// limits after a 429.
func (c *Coordinator) Throttler() *ratelimit.Throttler { return c.throttler }

// Analyzer exposes the latency tracker so the client can derive timeouts.
func (c *Coordinator) Analyzer() *network.Analyzer { return c.analyzer }

// Rotator exposes the proxy pool so the client can flag broken proxies.
func (c *Coordinator) Rotator() *proxy.Rotator { return c.rotator }

// Fingerprint returns the active browser identity, generating a fresh one
// when none is cached or the rotation interval has elapsed.
func (c *Coordinator) Fingerprint() *fingerprint.Fingerprint {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cached == nil || now.Sub(c.lastRotation) >= c.rotationInterval {
		family := c.pickFamilyLocked()
		c.cached = c.generator.Generate(family)
		c.lastRotation = now
		c.logger.Debug("rotated fingerprint",
			zap.String("browser", family),
			zap.String("user_agent", c.cached.UserAgent))
	}
	return c.cached
}

// InvalidateFingerprint discards the cached identity so the next request
// presents as a different browser. Called after a 403.
func (c *Coordinator) InvalidateFingerprint() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
	c.logger.Debug("fingerprint invalidated")
}

func (c *Coordinator) pickFamilyLocked() string {
	r := c.rng.Float64()
	cumulative := 0.0
	for _, family := range c.families {
		cumulative += c.distribution[family]
		if r <= cumulative {
			return family
		}
	}
	return fingerprint.Chrome
}

// PrepareRequest throttles on the URL's domain, then assembles the headers,
// proxy, and identity for the request. Blocks until the rate limiter
// admits the request or ctx is cancelled.
func (c *Coordinator) PrepareRequest(ctx context.Context, rawURL string) (*RequestPlan, error) {
	if err := c.throttler.Throttle(ctx, rawURL); err != nil {
		return nil, err
	}

	proxyURL, err := c.rotator.Current()
	if err != nil {
		return nil, err
	}

	fp := c.Fingerprint()
	headers, order := c.buildHeaders(fp)

	domain := ratelimit.DomainOf(rawURL)
	if stored := c.cookies.Get(domain); len(stored) > 0 {
		pairs := make([]string, 0, len(stored))
		names := make([]string, 0, len(stored))
		for name := range stored {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pairs = append(pairs, fmt.Sprintf("%s=%s", name, stored[name]))
		}
		headers["Cookie"] = strings.Join(pairs, "; ")
		order = append(order, "Cookie")
	}

	return &RequestPlan{
		Headers:     headers,
		HeaderOrder: order,
		Proxy:       proxyURL,
		Fingerprint: fp,
	}, nil
}

// ObserveResponse feeds response data back into the adaptive components:
// latency into the analyzer and Set-Cookie values into the cookie store.
func (c *Coordinator) ObserveResponse(rawURL string, setCookies map[string]string, latency time.Duration) {
	domain := ratelimit.DomainOf(rawURL)
	c.analyzer.Record(domain, latency)
	c.cookies.Set(domain, setCookies)
}

func (c *Coordinator) buildHeaders(fp *fingerprint.Fingerprint) (map[string]string, []string) {
	headers := map[string]string{
		"User-Agent":                fp.UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
		"Accept-Language":           fp.AcceptLanguage,
		"Accept-Encoding":           "gzip, deflate, br",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
	order := []string{
		"User-Agent", "Accept", "Accept-Language", "Accept-Encoding",
		"Connection", "Upgrade-Insecure-Requests", "Cache-Control",
	}

	// Edge sends the Chromium client hints too; its UA contains "Chrome".
	if strings.Contains(fp.UserAgent, "Chrome") {
		headers["sec-ch-ua"] = `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`
		headers["sec-ch-ua-mobile"] = "?0"
		headers["sec-ch-ua-platform"] = fmt.Sprintf("%q", fp.Platform)
		headers["sec-fetch-dest"] = "document"
		headers["sec-fetch-mode"] = "navigate"
		headers["sec-fetch-site"] = "none"
		headers["sec-fetch-user"] = "?1"
		order = append(order,
			"sec-ch-ua", "sec-ch-ua-mobile", "sec-ch-ua-platform",
			"sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "sec-fetch-user")
	} else if strings.Contains(fp.UserAgent, "Firefox") {
		headers["sec-fetch-dest"] = "document"
		headers["sec-fetch-mode"] = "navigate"
		headers["sec-fetch-site"] = "none"
		headers["sec-fetch-user"] = "?1"
		order = append(order,
			"sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "sec-fetch-user")
	}

	c.mu.Lock()
	addDNT := c.rng.Float64() < 0.3
	addReferer := c.rng.Float64() < 0.8
	var referer string
	if addReferer {
		referer = referers[c.rng.Intn(len(referers))]
	}
	c.mu.Unlock()

	if addDNT {
		headers["DNT"] = "1"
		order = append(order, "DNT")
	}
	if addReferer {
		headers["Referer"] = referer
		order = append(order, "Referer")
	}

	return headers, order
}
