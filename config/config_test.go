package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 5, cfg.RateLimit.BurstSize)
	require.Equal(t, 3, cfg.Retry.MaxRetries)
	require.Equal(t, time.Second, cfg.BaseDelay())
	require.Equal(t, 30*time.Second, cfg.MaxDelay())
	require.Equal(t, 5*time.Minute, cfg.ProxyRotationInterval())
	require.Equal(t, time.Hour, cfg.FingerprintRotation())
	require.Equal(t, 4*time.Hour, cfg.CookieClearInterval())
	require.Equal(t, 5*time.Minute, cfg.DNSCacheTTL())
	require.Equal(t, 30*time.Second, cfg.RequestTimeout())
	require.True(t, cfg.JitterEnabled())
	require.True(t, cfg.CacheBustingEnabled())
}

func TestLoadAppliesDefaultsForAbsentKeys(t *testing.T) {
	path := writeConfig(t, `
rate_limit:
  requests_per_second: 0.5
  burst_size: 2
  domain_rate_limits:
    api.example.com:
      requests_per_second: 10
      burst_size: 20
retry:
  max_retries: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 0.5, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 5, cfg.Retry.MaxRetries)
	require.Equal(t, DomainLimit{RequestsPerSecond: 10, BurstSize: 20},
		cfg.RateLimit.DomainRateLimits["api.example.com"])

	// Untouched sections keep their defaults.
	require.Equal(t, 30*time.Second, cfg.MaxDelay())
	require.Equal(t, 0.5, cfg.AntiDetection.MinDelay)
}

func TestLoadBooleanOverrides(t *testing.T) {
	path := writeConfig(t, `
retry:
  jitter: false
anti_detection:
  use_cache_busting: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.JitterEnabled())
	require.False(t, cfg.CacheBustingEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "rate_limit: [not a map")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rps", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }},
		{"zero burst", func(c *Config) { c.RateLimit.BurstSize = 0 }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"max below base delay", func(c *Config) { c.Retry.MaxDelay = 0.5 }},
		{"exponential base below one", func(c *Config) { c.Retry.ExponentialBase = 0.5 }},
		{"negative min delay", func(c *Config) { c.AntiDetection.MinDelay = -1 }},
		{"inverted delays", func(c *Config) {
			c.AntiDetection.MinDelay = 3
			c.AntiDetection.MaxDelay = 1
		}},
		{"proxies enabled empty", func(c *Config) { c.Proxy.Enabled = true }},
		{"bad domain limit", func(c *Config) {
			c.RateLimit.DomainRateLimits = map[string]DomainLimit{
				"example.com": {RequestsPerSecond: -1, BurstSize: 1},
			}
		}},
		{"negative distribution weight", func(c *Config) {
			c.Fingerprint.BrowserDistribution = map[string]float64{"chrome": -0.5}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
