// Package client implements the retrying fetch loop on top of the
// anti-detection coordinator.
//
// All options have defaults, so a client needs only a configuration:
//
//	c, err := client.New(config.Default())
//
// Or with dependencies wired in:
//
//	c, err := client.New(cfg,
//	    client.WithLogger(logger),
//	    client.WithMetrics(metrics.NewCounters()),
//	)
package client

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/stockcloak/stockcloak/metrics"
)

type options struct {
	logger    *zap.Logger
	recorder  metrics.Recorder
	transport Transport
	rng       *rand.Rand
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the structured logger. Without it the client is silent.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Without it events are discarded.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// WithTransport replaces the wire transport. Tests use this to script
// responses without touching the network.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithRand sets the rand source behind delays, jitter, and fingerprint
// choices, so tests can pin every random decision.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}
