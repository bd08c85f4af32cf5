package backoff

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextGrowsExponentially(t *testing.T) {
	p := New(Config{
		MaxRetries:      5,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          false,
	})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for i, w := range want {
		require.Equal(t, w, p.Next(), "attempt %d", i)
	}
}

func TestNextClampsToMaxDelay(t *testing.T) {
	p := New(Config{
		MaxRetries:      10,
		BaseDelay:       time.Second,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          false,
	})

	p.Next() // 1s
	p.Next() // 2s
	p.Next() // 4s
	require.Equal(t, 5*time.Second, p.Next())
	require.Equal(t, 5*time.Second, p.Next())
}

func TestNextAtCeilingReturnsMaxDelayPlain(t *testing.T) {
	p := New(Config{
		MaxRetries:      2,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	})

	p.Next()
	p.Next()
	require.Equal(t, 2, p.Attempt())

	// Past the retry budget the delay is exactly MaxDelay, no jitter,
	// and the counter stops advancing.
	for i := 0; i < 3; i++ {
		require.Equal(t, 30*time.Second, p.Next())
	}
	require.Equal(t, 2, p.Attempt())
}

func TestNextJitterStaysWithinTenPercent(t *testing.T) {
	cfg := Config{
		MaxRetries:      100,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
	p := NewWithRand(cfg, rand.New(rand.NewSource(42)))

	base := time.Second
	for i := 0; i < 5; i++ {
		got := p.Next()
		require.GreaterOrEqual(t, got, base)
		require.LessOrEqual(t, got, base+base/10)
		base *= 2
	}
}

func TestNextWithJitterNeverExceedsMaxDelay(t *testing.T) {
	cfg := Config{
		MaxRetries:      100,
		BaseDelay:       time.Second,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
	p := NewWithRand(cfg, rand.New(rand.NewSource(7)))

	for i := 0; i < 20; i++ {
		require.LessOrEqual(t, p.Next(), 5*time.Second)
	}
}

func TestReset(t *testing.T) {
	p := New(Config{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          false,
	})

	p.Next()
	p.Next()
	require.Equal(t, 2, p.Attempt())

	p.Reset()
	require.Equal(t, 0, p.Attempt())
	require.Equal(t, time.Second, p.Next())
}
