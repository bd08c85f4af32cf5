// Package config holds the configuration consumed by the fetch engine.
//
// Configuration can be loaded from a YAML file or built in code starting
// from Default(). All durations are expressed in seconds in the file to
// keep the format language-neutral:
//
//	rate_limit:
//	  requests_per_second: 2.0
//	  burst_size: 5
//	retry:
//	  max_retries: 3
//	  base_delay: 1.0
//	  max_delay: 30.0
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DomainLimit is a per-domain rate limit override.
type DomainLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// RateLimitConfig controls the per-domain token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the default refill rate for domains without an
	// explicit override.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// BurstSize is the default bucket capacity.
	BurstSize int `yaml:"burst_size"`

	// DomainRateLimits overrides the defaults for specific domains.
	DomainRateLimits map[string]DomainLimit `yaml:"domain_rate_limits"`
}

// RetryConfig controls exponential backoff between retry attempts.
type RetryConfig struct {
	MaxRetries      int     `yaml:"max_retries"`
	BaseDelay       float64 `yaml:"base_delay"` // seconds
	MaxDelay        float64 `yaml:"max_delay"`  // seconds
	ExponentialBase float64 `yaml:"exponential_base"`
	Jitter          *bool   `yaml:"jitter"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	Proxies                 []string `yaml:"proxies"`
	MaxUses                 int      `yaml:"proxy_max_uses"`
	RotationIntervalSeconds int      `yaml:"proxy_rotation_interval_seconds"`
}

// FingerprintConfig controls browser identity generation.
type FingerprintConfig struct {
	// RotationIntervalSeconds is the fingerprint TTL. A cached fingerprint
	// is reused until it expires or is invalidated after a suspected block.
	RotationIntervalSeconds int `yaml:"fingerprint_rotation_interval_seconds"`

	// BrowserDistribution maps browser family to selection weight.
	// Defaults to chrome 0.65, firefox 0.20, safari 0.10, edge 0.05.
	BrowserDistribution map[string]float64 `yaml:"browser_distribution"`
}

// TimingConfig controls the randomized pre-request delay and cache busting.
type TimingConfig struct {
	MinDelay        float64 `yaml:"min_delay"` // seconds
	MaxDelay        float64 `yaml:"max_delay"` // seconds
	UseCacheBusting *bool   `yaml:"use_cache_busting"`
}

// ConnectionPoolConfig controls the shared connection layer.
type ConnectionPoolConfig struct {
	Limit            int `yaml:"limit"`
	LimitPerHost     int `yaml:"limit_per_host"`
	DNSCacheTTL      int `yaml:"dns_cache_ttl"`     // seconds
	KeepAliveTimeout int `yaml:"keepalive_timeout"` // seconds
}

// CookieConfig controls the periodic cookie wipe.
type CookieConfig struct {
	ClearIntervalSeconds int `yaml:"clear_interval_seconds"`
}

// Config is the full configuration for the fetch engine.
type Config struct {
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Retry          RetryConfig          `yaml:"retry"`
	Proxy          ProxyConfig          `yaml:"proxy"`
	Fingerprint    FingerprintConfig    `yaml:"fingerprint"`
	AntiDetection  TimingConfig         `yaml:"anti_detection"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	Cookies        CookieConfig         `yaml:"cookies"`

	// RequestTimeoutSeconds caps a single request when no latency history
	// exists yet for the domain.
	RequestTimeoutSeconds int `yaml:"request_timeout"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only useful when testing against local endpoints.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Default returns the default configuration.
func Default() *Config {
	jitter := true
	cacheBusting := true
	return &Config{
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			MaxRetries:      3,
			BaseDelay:       1.0,
			MaxDelay:        30.0,
			ExponentialBase: 2.0,
			Jitter:          &jitter,
		},
		Proxy: ProxyConfig{
			MaxUses:                 5,
			RotationIntervalSeconds: 300,
		},
		Fingerprint: FingerprintConfig{
			RotationIntervalSeconds: 3600,
		},
		AntiDetection: TimingConfig{
			MinDelay:        0.5,
			MaxDelay:        2.0,
			UseCacheBusting: &cacheBusting,
		},
		ConnectionPool: ConnectionPoolConfig{
			Limit:            20,
			LimitPerHost:     5,
			DNSCacheTTL:      300,
			KeepAliveTimeout: 30,
		},
		Cookies: CookieConfig{
			ClearIntervalSeconds: 4 * 3600,
		},
		RequestTimeoutSeconds: 30,
	}
}

// Load reads a YAML configuration file, applying defaults for absent keys.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would silently misbehave at runtime.
func (c *Config) Validate() error {
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be > 0, got %v", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.BurstSize < 1 {
		return fmt.Errorf("rate_limit.burst_size must be >= 1, got %d", c.RateLimit.BurstSize)
	}
	for domain, limit := range c.RateLimit.DomainRateLimits {
		if limit.RequestsPerSecond <= 0 || limit.BurstSize < 1 {
			return fmt.Errorf("invalid rate limit for domain %q", domain)
		}
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 < base_delay <= max_delay")
	}
	if c.Retry.ExponentialBase < 1 {
		return fmt.Errorf("retry.exponential_base must be >= 1, got %v", c.Retry.ExponentialBase)
	}
	if c.AntiDetection.MinDelay < 0 || c.AntiDetection.MaxDelay < c.AntiDetection.MinDelay {
		return fmt.Errorf("anti_detection delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Proxy.Enabled && len(c.Proxy.Proxies) == 0 {
		return fmt.Errorf("proxy rotation enabled with an empty proxy list")
	}
	total := 0.0
	for family, weight := range c.Fingerprint.BrowserDistribution {
		if weight < 0 {
			return fmt.Errorf("browser_distribution weight for %q must be >= 0", family)
		}
		total += weight
	}
	if c.Fingerprint.BrowserDistribution != nil && total == 0 {
		return fmt.Errorf("browser_distribution weights sum to zero")
	}
	return nil
}

// JitterEnabled reports whether backoff jitter is on (default true).
func (c *Config) JitterEnabled() bool {
	return c.Retry.Jitter == nil || *c.Retry.Jitter
}

// CacheBustingEnabled reports whether GET cache busting is on (default true).
func (c *Config) CacheBustingEnabled() bool {
	return c.AntiDetection.UseCacheBusting == nil || *c.AntiDetection.UseCacheBusting
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func secondsF(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// Typed accessors for duration-valued settings.

func (c *Config) BaseDelay() time.Duration { return secondsF(c.Retry.BaseDelay) }

func (c *Config) MaxDelay() time.Duration { return secondsF(c.Retry.MaxDelay) }

func (c *Config) MinRequestDelay() time.Duration { return secondsF(c.AntiDetection.MinDelay) }

func (c *Config) MaxRequestDelay() time.Duration { return secondsF(c.AntiDetection.MaxDelay) }

func (c *Config) ProxyRotationInterval() time.Duration {
	return seconds(c.Proxy.RotationIntervalSeconds)
}

func (c *Config) FingerprintRotation() time.Duration {
	return seconds(c.Fingerprint.RotationIntervalSeconds)
}

func (c *Config) CookieClearInterval() time.Duration { return seconds(c.Cookies.ClearIntervalSeconds) }

func (c *Config) DNSCacheTTL() time.Duration { return seconds(c.ConnectionPool.DNSCacheTTL) }

func (c *Config) KeepAliveTimeout() time.Duration { return seconds(c.ConnectionPool.KeepAliveTimeout) }

func (c *Config) RequestTimeout() time.Duration { return seconds(c.RequestTimeoutSeconds) }
