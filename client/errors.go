package client

import (
	"context"
	"errors"
	"net"
	"os"
)

// ErrRetriesExhausted is returned when every attempt failed with a
// retryable error. The result carries status 0 and empty headers; the last
// cause is logged and counted but deliberately not exposed.
var ErrRetriesExhausted = errors.New("client: retries exhausted")

// Retry causes, reported to the metrics recorder.
const (
	causeRateLimited = "rate_limited"
	causeServerError = "server_error"
	causeBlocked     = "blocked"
	causeTimeout     = "timeout"
	causeConnection  = "connection"
)

// isTimeout distinguishes a request that ran out of time from one that
// failed to connect at all. Both retry, but timeouts feed the analyzer
// differently and don't condemn the proxy.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
