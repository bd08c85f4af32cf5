// Package cookies stores per-domain cookies with a periodic wholesale wipe.
//
// Keeping cookies between requests makes traffic look like a returning
// browser; clearing them all every few hours prevents long-lived tracking
// identifiers from accumulating.
package cookies

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultClearInterval is how often the store is wiped.
const DefaultClearInterval = 4 * time.Hour

// Store holds cookies keyed by domain, then by cookie name.
type Store struct {
	mu            sync.Mutex
	byDomain      map[string]map[string]string
	lastCleared   time.Time
	clearInterval time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewStore creates a store that wipes itself every clearInterval. A zero
// or negative interval falls back to DefaultClearInterval.
func NewStore(clearInterval time.Duration, logger *zap.Logger) *Store {
	if clearInterval <= 0 {
		clearInterval = DefaultClearInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		byDomain:      make(map[string]map[string]string),
		lastCleared:   time.Now(),
		clearInterval: clearInterval,
		now:           time.Now,
		logger:        logger,
	}
}

// Set merges cookies into the domain's existing set, overwriting values
// for names already present.
func (s *Store) Set(domain string, cookies map[string]string) {
	if len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byDomain[domain]
	if !ok {
		existing = make(map[string]string, len(cookies))
		s.byDomain[domain] = existing
	}
	for name, value := range cookies {
		existing[name] = value
	}
}

// Get returns a copy of the domain's cookies, first wiping the whole store
// if the clear interval has elapsed. Returns an empty map for unknown
// domains.
func (s *Store) Get(domain string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkClearLocked()

	out := make(map[string]string, len(s.byDomain[domain]))
	for name, value := range s.byDomain[domain] {
		out[name] = value
	}
	return out
}

// Clear wipes all cookies for all domains and restarts the interval timer.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byDomain = make(map[string]map[string]string)
	s.lastCleared = s.now()
	s.mu.Unlock()
}

func (s *Store) checkClearLocked() {
	now := s.now()
	if now.Sub(s.lastCleared) < s.clearInterval {
		return
	}
	s.byDomain = make(map[string]map[string]string)
	s.lastCleared = now
	s.logger.Debug("cleared cookie store")
}
