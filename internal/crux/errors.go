package crux

import (
	"errors"
	"fmt"
)

// ErrNoData indicates the CrUX dataset has no record for the URL. This is
// an expected outcome for low-traffic URLs, not a failure of the service.
var ErrNoData = errors.New("no CrUX data available for URL")

// ErrRateLimited indicates the upstream rejected the call with HTTP 429.
var ErrRateLimited = errors.New("CrUX API rate limit exceeded")

// ResponseError is any other non-200 answer from the upstream, carrying
// the status code and the message from the upstream error body.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("CrUX API returned error %d: %s", e.StatusCode, e.Message)
}

// ConnectionError wraps transport-level failures (DNS, refused connection,
// timeout) so callers can map them separately from upstream API errors.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to CrUX API: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
