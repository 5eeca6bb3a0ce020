package providers

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusError captures a non-200 HTTP response from a provider endpoint.
type StatusError struct {
	StatusCode     int
	Body           string
	RetryAfterSecs int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// ParseRetryAfter reads a Retry-After header given in seconds. HTTP-date
// values and garbage leave RetryAfterSecs at zero.
func (e *StatusError) ParseRetryAfter(header string) {
	e.RetryAfterSecs = ParseRetryAfter(header)
}

// ParseRetryAfter returns the number of seconds in a Retry-After header, or 0.
func ParseRetryAfter(header string) int {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
