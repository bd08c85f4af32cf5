// Package dns caches hostname lookups with a TTL.
//
// The transport layer dials on its own, so the cache is used up front: a
// fetch resolves the host before spending a full request timeout on it,
// and repeat fetches to the same domain skip the lookup entirely while the
// entry is fresh.
package dns

import (
	"context"
	"net"
	"sync"
	"time"
)

const minTTL = 30 * time.Second

type entry struct {
	ips       []net.IP
	expiresAt time.Time
}

// Cache is a TTL-aware hostname resolution cache with stale-on-error
// fallback: if a refresh lookup fails but an expired entry exists, the
// stale addresses are returned rather than an error.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	resolver *net.Resolver
	ttl      time.Duration
}

// NewCache creates a cache with the given TTL, floored at 30 seconds to
// avoid hammering the resolver.
func NewCache(ttl time.Duration) *Cache {
	if ttl < minTTL {
		ttl = minTTL
	}
	return &Cache{
		entries:  make(map[string]entry),
		resolver: net.DefaultResolver,
		ttl:      ttl,
	}
}

// Resolve returns the IP addresses for a hostname, from cache when fresh.
func (c *Cache) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	c.mu.RLock()
	e, ok := c.entries[host]
	c.mu.RUnlock()

	if ok && time.Now().Before(e.expiresAt) {
		return e.ips, nil
	}

	ips, err := c.lookup(ctx, host)
	if err != nil {
		if ok {
			return e.ips, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[host] = entry{ips: ips, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return ips, nil
}

// Prefetch resolves a hostname and reports only whether it worked. Used
// before a request so an unresolvable domain fails in milliseconds instead
// of a connect timeout.
func (c *Cache) Prefetch(ctx context.Context, host string) error {
	_, err := c.Resolve(ctx, host)
	return err
}

func (c *Cache) lookup(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no addresses found", Name: host}
	}

	ips := make([]net.IP, len(addrs))
	for i, addr := range addrs {
		ips[i] = addr.IP
	}
	return ips, nil
}

// Invalidate removes a hostname from the cache.
func (c *Cache) Invalidate(host string) {
	c.mu.Lock()
	delete(c.entries, host)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Cleanup removes expired entries. Stale entries are still useful as an
// error fallback, so this only runs when memory matters more.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for host, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, host)
		}
	}
}

// Len returns the number of cached hostnames.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
