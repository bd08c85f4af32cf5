package client

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/klauspost/compress/zstd"

	"github.com/stockcloak/stockcloak/fingerprint"
	"github.com/stockcloak/stockcloak/network"
)

// Request is one wire-level exchange handed to the transport. Headers are
// sent exactly as given, in HeaderOrder, so the casing and ordering parts
// of the disguise survive the trip.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	Headers     map[string]string
	HeaderOrder []string

	// Proxy is the proxy URL for this request, empty for direct.
	Proxy string

	// Fingerprint selects the TLS-level profile the connection presents.
	Fingerprint *fingerprint.Fingerprint

	// Timeout caps the whole exchange; ConnectTimeout caps connection
	// establishment and never exceeds half of Timeout.
	Timeout        time.Duration
	ConnectTimeout time.Duration

	// ConnParams tune the connection pool for this request's domain.
	ConnParams network.ConnParams
}

// Response is the decompressed result of an exchange.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Cookies    map[string]string
	Body       []byte
}

// Transport sends prepared requests. The production implementation rides
// on tls-client; tests substitute a scripted one.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
	Close()
}

// tlsTransport sends requests through bogdanfinn/tls-client so the TLS
// ClientHello matches the claimed browser. Underlying clients are cached
// per (browser, proxy, pool tier) and reused across requests.
type tlsTransport struct {
	mu       sync.Mutex
	clients  map[string]tls_client.HttpClient
	maxIdle  int
	insecure bool
	closed   bool
}

func newTLSTransport(maxIdleConns int, insecure bool) *tlsTransport {
	if maxIdleConns <= 0 {
		maxIdleConns = 20
	}
	return &tlsTransport{
		clients:  make(map[string]tls_client.HttpClient),
		maxIdle:  maxIdleConns,
		insecure: insecure,
	}
}

func (t *tlsTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	cl, err := t.clientFor(req)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	// Direct map assignment keeps the exact key casing, including the
	// lowercase sec-* client hints.
	for name, value := range req.Headers {
		httpReq.Header[name] = []string{value}
	}
	httpReq.Header[http.HeaderOrderKey] = req.HeaderOrder

	resp, err := cl.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	body, err := decompress(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decompress response: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		headers[name] = strings.Join(values, ", ")
	}

	cookies := make(map[string]string)
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck.Value
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Cookies:    cookies,
		Body:       body,
	}, nil
}

func (t *tlsTransport) clientFor(req *Request) (tls_client.HttpClient, error) {
	fp := req.Fingerprint
	key := fmt.Sprintf("%s|%t|%s|%d", fp.Browser, fp.Mobile, req.Proxy, req.ConnParams.LimitPerHost)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport is closed")
	}
	if cl, ok := t.clients[key]; ok {
		return cl, nil
	}

	idle := req.ConnParams.KeepAliveTimeout
	opts := []tls_client.HttpClientOption{
		// The real per-request cap is the context deadline; this is the
		// hard ceiling for requests without one.
		tls_client.WithTimeoutSeconds(60),
		tls_client.WithClientProfile(fingerprint.ClientProfile(fp)),
		tls_client.WithTransportOptions(&tls_client.TransportOptions{
			MaxIdleConns:        t.maxIdle,
			MaxIdleConnsPerHost: req.ConnParams.LimitPerHost,
			MaxConnsPerHost:     req.ConnParams.LimitPerHost,
			IdleConnTimeout:     &idle,
		}),
	}
	if req.Proxy != "" {
		opts = append(opts, tls_client.WithProxyUrl(req.Proxy))
	}
	if t.insecure {
		opts = append(opts, tls_client.WithInsecureSkipVerify())
	}

	cl, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create tls client: %w", err)
	}
	t.clients[key] = cl
	return cl, nil
}

// Close drops all pooled connections. The transport rejects requests
// afterwards.
func (t *tlsTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, cl := range t.clients {
		cl.CloseIdleConnections()
	}
	t.clients = nil
}

// decompress decodes the response body according to Content-Encoding.
// Needed because we pin Accept-Encoding ourselves, which turns off the
// automatic gzip handling.
func decompress(data []byte, encoding string) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r.IOReadCloser())
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer r.Close()
			return io.ReadAll(r)
		}
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		return io.ReadAll(r)
	default:
		return data, nil
	}
}
