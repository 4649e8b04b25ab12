package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := NewCapabilityError(KindRateLimited, errors.New("429"))
	wrapped := fmt.Errorf("calling api: %w", err)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected a kind in the chain")
	}
	if kind != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", kind)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain error should carry no kind")
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		kind  Kind
		fatal bool
	}{
		{KindUnauthorized, true},
		{KindBadRequest, true},
		{KindRateLimited, false},
		{KindUnavailable, false},
		{KindTimeout, false},
		{KindUnreachable, false},
	}
	for _, tc := range cases {
		err := NewCapabilityError(tc.kind, errors.New("x"))
		if got := IsFatal(err); got != tc.fatal {
			t.Errorf("%s: IsFatal = %v, want %v", tc.kind, got, tc.fatal)
		}
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain error must not be fatal")
	}
}

func TestIsTransient_ClassifiedKinds(t *testing.T) {
	if !IsTransient(NewCapabilityError(KindUnavailable, errors.New("503"))) {
		t.Error("unavailable should be transient")
	}
	if IsTransient(NewCapabilityError(KindUnauthorized, errors.New("401"))) {
		t.Error("unauthorized must not be transient")
	}
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
}

func TestIsTransient_SyscallErrors(t *testing.T) {
	if !IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)) {
		t.Error("ECONNREFUSED should be transient")
	}
	if !IsTransient(errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset message should be transient")
	}
}

func TestKindFromHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
		ok     bool
	}{
		{http.StatusTooManyRequests, KindRateLimited, true},
		{http.StatusUnauthorized, KindUnauthorized, true},
		{http.StatusForbidden, KindUnauthorized, true},
		{http.StatusBadRequest, KindBadRequest, true},
		{http.StatusRequestTimeout, KindTimeout, true},
		{http.StatusInternalServerError, KindUnavailable, true},
		{http.StatusBadGateway, KindUnavailable, true},
		{http.StatusOK, "", false},
	}
	for _, tc := range cases {
		kind, ok := KindFromHTTPStatus(tc.status)
		if ok != tc.ok || kind != tc.kind {
			t.Errorf("status %d: got (%s, %v), want (%s, %v)", tc.status, kind, ok, tc.kind, tc.ok)
		}
	}
}

func TestCapabilityError_Message(t *testing.T) {
	err := NewCapabilityError(KindBadRequest, errors.New("missing field"))
	if err.Error() != "bad_request: missing field" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	bare := &CapabilityError{Kind: KindTimeout}
	if bare.Error() != "timeout" {
		t.Errorf("unexpected bare message: %s", bare.Error())
	}
}
