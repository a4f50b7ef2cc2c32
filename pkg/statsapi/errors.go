package statsapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitError is returned when the API responds with 429. Header values
// that were absent are zero.
type RateLimitError struct {
	Limit      int
	Remaining  int
	Reset      int
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	msg := "statsapi: RATE_LIMIT: too many requests, please try in a while"
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %ds)", e.RetryAfter)
	}
	return msg
}

// RetryAfterDuration returns RetryAfter as a duration.
func (e *RateLimitError) RetryAfterDuration() time.Duration {
	return time.Duration(e.RetryAfter) * time.Second
}

// APIError is a non-2xx response other than 429. Message is the server
// supplied message when the body carried one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func rateLimitFromHeaders(h http.Header) *RateLimitError {
	return &RateLimitError{
		Limit:      headerInt(h, "ratelimit-limit"),
		Remaining:  headerInt(h, "ratelimit-remaining"),
		Reset:      headerInt(h, "ratelimit-reset"),
		RetryAfter: headerInt(h, "retry-after"),
	}
}

func headerInt(h http.Header, key string) int {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
