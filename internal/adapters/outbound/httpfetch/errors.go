package httpfetch

import (
	"fmt"
	"time"
)

// RequestError is a network or HTTP failure. StatusCode is zero when no
// response was received.
type RequestError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request %s failed with status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("request %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError means the response arrived but its body was not in the expected
// format. It is never retried.
type ParseError struct {
	URL    string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response from %s: %v", e.Format, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigError is raised before any I/O when a fetch setting is out of range.
type ConfigError struct {
	Field string
	Value any
	Rule  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Rule)
}

// rateLimitedError is a 429 response. It carries the server's wait hint.
type rateLimitedError struct {
	wait time.Duration
}

func (e *rateLimitedError) Error() string {
	if e.wait > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.wait)
	}
	return "rate limited"
}

func (e *rateLimitedError) RetryAfter() time.Duration { return e.wait }
