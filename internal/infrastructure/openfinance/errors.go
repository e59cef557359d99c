package openfinance

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthentication is returned for bad credentials or an exhausted 401
// retry. Callers should abort the current sync attempt entirely.
var ErrAuthentication = errors.New("provider authentication failed")

// ErrPermissionDenied is returned on 403 responses. The provider grants
// bill/investment scopes per account, so partial denial is an expected
// steady state; callers should degrade to an empty result.
var ErrPermissionDenied = errors.New("provider permission denied")

// ErrInvalidCredentials is returned at construction for malformed
// client id/secret pairs, before any network call is made.
var ErrInvalidCredentials = errors.New("invalid provider credentials")

// ErrNoCredential is returned by the client factory when a user has no
// stored provider credential. Callers treat it as "sync disabled".
var ErrNoCredential = errors.New("user has no provider credential")

// RateLimitError reports a locally rejected or server-throttled request.
type RateLimitError struct {
	// RetryAfter is how long the caller must wait before the request
	// can be re-issued.
	RetryAfter time.Duration
	// Local is true when the sliding-window limiter rejected the
	// request without a network call.
	Local bool
}

func (e *RateLimitError) Error() string {
	if e.Local {
		return fmt.Sprintf("rate limit reached locally, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by provider, retry after %s", e.RetryAfter)
}

// ParseError reports a response body that could not be decoded into the
// expected shape (HTML error pages, truncated or malformed JSON, or a
// payload failing gateway validation).
type ParseError struct {
	Reason string
	// Snippet holds the first bytes of the offending body for logs.
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("failed to parse provider response (%s): %q", e.Reason, e.Snippet)
	}
	return fmt.Sprintf("failed to parse provider response (%s)", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
