// Package resilience provides retry, bounded polling, and error
// classification for calls to unreliable external services.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind classifies a capability error for retry and fallback policy.
type Kind string

const (
	// KindRateLimited maps to HTTP 429; retryable by caller policy.
	KindRateLimited Kind = "rate_limited"
	// KindUnavailable maps to 5xx and network failures; retryable.
	KindUnavailable Kind = "unavailable"
	// KindUnauthorized maps to 401/403; never retried.
	KindUnauthorized Kind = "unauthorized"
	// KindBadRequest maps to 400; never retried.
	KindBadRequest Kind = "bad_request"
	// KindTimeout is a per-call deadline expiry on a fetch.
	KindTimeout Kind = "timeout"
	// KindUnreachable is a connection-level fetch failure.
	KindUnreachable Kind = "unreachable"
)

// CapabilityError tags an external-service failure with its Kind so call
// sites can branch on classification instead of inspecting transport
// errors.
type CapabilityError struct {
	Kind Kind
	Err  error
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError wraps err with a classification kind.
func NewCapabilityError(kind Kind, err error) *CapabilityError {
	return &CapabilityError{Kind: kind, Err: err}
}

// KindOf extracts the classification from an error chain. Returns false
// if no CapabilityError is present.
func KindOf(err error) (Kind, bool) {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// IsFatal reports whether the error must never be retried: bad
// credentials or a malformed request will not heal with time.
func IsFatal(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindUnauthorized || kind == KindBadRequest
}

// IsTransient reports whether the error (or anything in its chain) is
// safe to retry: an explicit retryable Kind, a network timeout, or a
// connection-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if kind, ok := KindOf(err); ok {
		return kind == KindRateLimited || kind == KindUnavailable ||
			kind == KindTimeout || kind == KindUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped errors from HTTP clients lose their type; fall back to
	// message heuristics.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// KindFromHTTPStatus maps an HTTP status code to a classification kind.
// Returns false for 2xx and statuses with no defined mapping.
func KindFromHTTPStatus(status int) (Kind, bool) {
	switch {
	case status == 429:
		return KindRateLimited, true
	case status == 401 || status == 403:
		return KindUnauthorized, true
	case status == 400 || status == 404 || status == 422:
		return KindBadRequest, true
	case status == 408:
		return KindTimeout, true
	case status >= 500:
		return KindUnavailable, true
	}
	return "", false
}
