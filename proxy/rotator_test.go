package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(proxies ...string) Config {
	return Config{
		Enabled:            true,
		Proxies:            proxies,
		MaxConsecutiveUses: 3,
		RotationInterval:   time.Hour,
	}
}

func TestCurrentDisabled(t *testing.T) {
	r := NewRotator(Config{Enabled: false, Proxies: []string{"http://p1:8080"}}, nil)

	p, err := r.Current()
	require.NoError(t, err)
	require.Empty(t, p)
}

func TestCurrentEmptyPoolFailsFast(t *testing.T) {
	r := NewRotator(Config{Enabled: true}, nil)

	_, err := r.Current()
	require.ErrorIs(t, err, ErrEmptyPool)
}

func TestRotatesAfterMaxUses(t *testing.T) {
	r := NewRotator(testConfig("http://p1:8080", "http://p2:8080"), nil)

	// The first proxy serves exactly MaxConsecutiveUses requests.
	for i := 0; i < 3; i++ {
		p, err := r.Current()
		require.NoError(t, err)
		require.Equal(t, "http://p1:8080", p, "use %d", i)
	}

	p, err := r.Current()
	require.NoError(t, err)
	require.Equal(t, "http://p2:8080", p)
}

func TestRotatesAfterInterval(t *testing.T) {
	r := NewRotator(testConfig("http://p1:8080", "http://p2:8080"), nil)

	p, err := r.Current()
	require.NoError(t, err)
	require.Equal(t, "http://p1:8080", p)

	start := time.Now()
	r.now = func() time.Time { return start.Add(2 * time.Hour) }

	p, err = r.Current()
	require.NoError(t, err)
	require.Equal(t, "http://p2:8080", p)
}

func TestRotationWrapsAround(t *testing.T) {
	r := NewRotator(testConfig("http://p1:8080", "http://p2:8080"), nil)

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		p, err := r.Current()
		require.NoError(t, err)
		seen[p] = true
	}
	require.Len(t, seen, 2)
}

func TestMarkUnhealthySkipsProxy(t *testing.T) {
	r := NewRotator(testConfig("http://p1:8080", "http://p2:8080", "http://p3:8080"), nil)

	p, err := r.Current()
	require.NoError(t, err)
	require.Equal(t, "http://p1:8080", p)

	r.MarkUnhealthy("http://p1:8080")
	r.MarkUnhealthy("http://p2:8080")

	p, err = r.Current()
	require.NoError(t, err)
	require.Equal(t, "http://p3:8080", p)
}

func TestAllUnhealthyFallsBackToRoundRobin(t *testing.T) {
	r := NewRotator(testConfig("http://p1:8080", "http://p2:8080"), nil)

	r.MarkUnhealthy("http://p1:8080")
	r.MarkUnhealthy("http://p2:8080")

	p, err := r.Current()
	require.NoError(t, err)
	require.NotEmpty(t, p)
}

func TestMarkHealthyRestoresProxy(t *testing.T) {
	r := NewRotator(testConfig("http://p1:8080", "http://p2:8080"), nil)

	r.MarkUnhealthy("http://p2:8080")
	r.MarkHealthy("http://p2:8080")

	// Exhaust p1's budget; rotation should land on the restored p2.
	for i := 0; i < 3; i++ {
		_, err := r.Current()
		require.NoError(t, err)
	}
	p, err := r.Current()
	require.NoError(t, err)
	require.Equal(t, "http://p2:8080", p)
}
