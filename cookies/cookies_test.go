package cookies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	s := NewStore(time.Hour, nil)

	s.Set("example.com", map[string]string{"session": "abc"})
	s.Set("example.com", map[string]string{"pref": "dark", "session": "def"})

	got := s.Get("example.com")
	require.Equal(t, map[string]string{"session": "def", "pref": "dark"}, got)
}

func TestGetUnknownDomain(t *testing.T) {
	s := NewStore(time.Hour, nil)
	require.Empty(t, s.Get("nowhere.example.com"))
}

func TestDomainsAreIsolated(t *testing.T) {
	s := NewStore(time.Hour, nil)

	s.Set("a.example.com", map[string]string{"k": "a"})
	s.Set("b.example.com", map[string]string{"k": "b"})

	require.Equal(t, "a", s.Get("a.example.com")["k"])
	require.Equal(t, "b", s.Get("b.example.com")["k"])
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Set("example.com", map[string]string{"k": "v"})

	got := s.Get("example.com")
	got["k"] = "tampered"

	require.Equal(t, "v", s.Get("example.com")["k"])
}

func TestClearAfterInterval(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Set("example.com", map[string]string{"k": "v"})

	now := time.Now()
	s.now = func() time.Time { return now.Add(59 * time.Minute) }
	require.NotEmpty(t, s.Get("example.com"), "before the interval cookies survive")

	s.now = func() time.Time { return now.Add(61 * time.Minute) }
	require.Empty(t, s.Get("example.com"), "past the interval the store is wiped")
}

func TestClearWipesEverything(t *testing.T) {
	s := NewStore(time.Hour, nil)
	s.Set("a.example.com", map[string]string{"k": "v"})
	s.Set("b.example.com", map[string]string{"k": "v"})

	s.Clear()

	require.Empty(t, s.Get("a.example.com"))
	require.Empty(t, s.Get("b.example.com"))
}
