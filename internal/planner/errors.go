package planner

import (
	"errors"
	"fmt"
)

// TransportError reports a network-level failure before any usable HTTP
// response arrived: connection refused, DNS failure, or a per-request
// timeout.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a response that carried a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// ParseError reports malformed content in a successfully fetched document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError reports that every fetch attempt for a URL failed. LastErr
// holds the cause of the final attempt.
type FetchError struct {
	URL      string
	Attempts int
	LastErr  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s after %d attempts: %v", e.URL, e.Attempts, e.LastErr)
}

func (e *FetchError) Unwrap() error { return e.LastErr }

// Retriable reports whether another fetch attempt may succeed. Transport and
// status failures are retriable; parse failures are terminal because the
// content itself is bad.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	var parseErr *ParseError
	return !errors.As(err, &parseErr)
}
