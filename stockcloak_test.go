package stockcloak

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockcloak/stockcloak/client"
)

type stubTransport struct {
	mu     sync.Mutex
	resp   *client.Response
	calls  int
	closed int
}

func (s *stubTransport) RoundTrip(_ context.Context, _ *client.Request) (*client.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.resp, nil
}

func (s *stubTransport) Close() {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
}

func TestEngineFetch(t *testing.T) {
	tr := &stubTransport{resp: &client.Response{
		StatusCode: 200,
		Headers:    map[string]string{},
		Body:       []byte("hello"),
	}}

	cfg := DefaultConfig()
	cfg.AntiDetection.MinDelay = 0
	cfg.AntiDetection.MaxDelay = 0

	engine, err := New(cfg, WithTransport(tr))
	require.NoError(t, err)
	defer engine.Close()

	resp, err := engine.Fetch(context.Background(), "http://127.0.0.1/")
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, []byte("hello"), resp.Body)
	require.Equal(t, 1, tr.calls)
}

func TestEngineNilConfigUsesDefaults(t *testing.T) {
	engine, err := New(nil, WithTransport(&stubTransport{resp: &client.Response{StatusCode: 200}}))
	require.NoError(t, err)
	engine.Close()
}

func TestEngineCloseIdempotent(t *testing.T) {
	tr := &stubTransport{}
	engine, err := New(DefaultConfig(), WithTransport(tr))
	require.NoError(t, err)

	engine.Close()
	engine.Close()
	require.Equal(t, 1, tr.closed)
}
