// Package backoff implements exponential backoff with jitter for retry
// scheduling.
package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Config controls the backoff curve.
type Config struct {
	// MaxRetries is the number of attempts before the curve flattens.
	// Once the attempt counter reaches this value, Next returns MaxDelay
	// exactly, without jitter.
	MaxRetries int

	// BaseDelay is the delay for the first attempt.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// ExponentialBase is the growth multiplier per attempt.
	ExponentialBase float64

	// Jitter adds up to 10% of the computed delay on top of it, spreading
	// out retries from concurrent callers. The result is still capped at
	// MaxDelay.
	Jitter bool
}

// DefaultConfig returns the standard backoff curve: 3 retries, 1s base,
// 30s ceiling, doubling per attempt, jitter on.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Policy tracks the attempt counter for one retry sequence. Safe for
// concurrent use, though a sequence normally belongs to a single fetch.
type Policy struct {
	cfg     Config
	mu      sync.Mutex
	attempt int
	rng     *rand.Rand
}

// New creates a policy seeded from the current time.
func New(cfg Config) *Policy {
	return NewWithRand(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand creates a policy with an explicit rand source so tests can
// pin the jitter.
func NewWithRand(cfg Config, rng *rand.Rand) *Policy {
	return &Policy{cfg: cfg, rng: rng}
}

// Next returns the delay before the next attempt and advances the counter.
// After MaxRetries calls it returns MaxDelay plain and stops advancing.
func (p *Policy) Next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempt >= p.cfg.MaxRetries {
		return p.cfg.MaxDelay
	}

	delay := float64(p.cfg.BaseDelay) * math.Pow(p.cfg.ExponentialBase, float64(p.attempt))
	if delay > float64(p.cfg.MaxDelay) {
		delay = float64(p.cfg.MaxDelay)
	}

	if p.cfg.Jitter {
		delay += p.rng.Float64() * delay * 0.1
		if delay > float64(p.cfg.MaxDelay) {
			delay = float64(p.cfg.MaxDelay)
		}
	}

	p.attempt++
	return time.Duration(delay)
}

// Attempt returns how many delays have been handed out since the last Reset.
func (p *Policy) Attempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

// Reset rewinds the counter so the next delay starts from BaseDelay again.
func (p *Policy) Reset() {
	p.mu.Lock()
	p.attempt = 0
	p.mu.Unlock()
}
