package providers

import (
	"fmt"
	"strconv"
)

// StatusError wraps a non-200 HTTP response from a back end so adapters can
// classify it into the cferrors taxonomy (429 -> rate limit, 5xx ->
// transient, else fatal).
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter int // seconds; 0 if not supplied
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ParseRetryAfter extracts a Retry-After header value (seconds form only;
// HTTP-date form is treated as absent) for use in a StatusError or
// cferrors.RateLimitError.
func ParseRetryAfter(headerValue string) int {
	if headerValue == "" {
		return 0
	}
	secs, err := strconv.Atoi(headerValue)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
