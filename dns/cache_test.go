package dns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveLiteralIP(t *testing.T) {
	c := NewCache(time.Minute)

	ips, err := c.Resolve(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, ips, 1)
	require.Equal(t, "127.0.0.1", ips[0].String())
}

func TestResolveLiteralIPv6(t *testing.T) {
	c := NewCache(time.Minute)

	ips, err := c.Resolve(context.Background(), "::1")
	require.NoError(t, err)
	require.Len(t, ips, 1)
}

func TestPrefetchLiteralIP(t *testing.T) {
	c := NewCache(time.Minute)
	require.NoError(t, c.Prefetch(context.Background(), "192.168.1.1"))
}

func TestTTLFloor(t *testing.T) {
	c := NewCache(time.Second)
	require.Equal(t, 30*time.Second, c.ttl)
}

func TestInvalidateAndClear(t *testing.T) {
	c := NewCache(time.Minute)
	c.entries["a.example.com"] = entry{expiresAt: time.Now().Add(time.Minute)}
	c.entries["b.example.com"] = entry{expiresAt: time.Now().Add(time.Minute)}

	c.Invalidate("a.example.com")
	require.Equal(t, 1, c.Len())

	c.Clear()
	require.Equal(t, 0, c.Len())
}

func TestCleanupDropsExpiredOnly(t *testing.T) {
	c := NewCache(time.Minute)
	c.entries["fresh.example.com"] = entry{expiresAt: time.Now().Add(time.Minute)}
	c.entries["stale.example.com"] = entry{expiresAt: time.Now().Add(-time.Minute)}

	c.Cleanup()
	require.Equal(t, 1, c.Len())

	_, ok := c.entries["fresh.example.com"]
	require.True(t, ok)
}
