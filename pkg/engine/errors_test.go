package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindMatchingThroughWrapping(t *testing.T) {
	cause := errors.New("low-level detail")

	tests := []struct {
		name  string
		err   error
		match func(error) bool
		other func(error) bool
	}{
		{"add failed", NewAddFailedError("acme", cause), IsAddFailed, IsStoreUnavailable},
		{"store unavailable", NewStoreUnavailableError(cause), IsStoreUnavailable, IsAddFailed},
		{"no refs requested", NewNoRefsRequestedError("acme"), IsNoRefsRequested, IsUnknownRef},
		{"transport failed", NewTransportFailedError("acme", cause), IsTransportFailed, IsNoRefsRequested},
		{"unknown ref", NewUnknownRefError("stable/amd64", cause), IsUnknownRef, IsTransportFailed},
		{"sysroot unavailable", NewSysrootUnavailableError(cause), IsSysrootUnavailable, IsStageFailed},
		{"stage failed", NewStageFailedError("myos", "c0ffee", cause), IsStageFailed, IsCleanupFailed},
		{"cleanup failed", NewCleanupFailedError(cause), IsCleanupFailed, IsSysrootUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stage wrapper: %w", tt.err)
			if !tt.match(wrapped) {
				t.Errorf("predicate did not match wrapped error %v", wrapped)
			}
			if tt.other(wrapped) {
				t.Errorf("predicate of a different kind matched %v", wrapped)
			}
			if tt.match(cause) {
				t.Error("predicate matched the bare cause")
			}
		})
	}
}

func TestErrorsPreserveCollaboratorDiagnostic(t *testing.T) {
	cause := errors.New("libostree: HTTP 503 from mirror")
	err := NewTransportFailedError("acme", cause)

	if !errors.Is(err, cause) {
		t.Error("cause must survive unwrapping")
	}
	if !strings.Contains(err.Error(), "HTTP 503 from mirror") {
		t.Errorf("diagnostic reworded or swallowed: %v", err)
	}
}

func TestErrorKindEquality(t *testing.T) {
	a := NewUnknownRefError("stable/amd64", nil)
	b := NewUnknownRefError("testing/arm64", errors.New("other"))
	if !errors.Is(a, b) {
		t.Error("same-kind fetch errors must match via errors.Is")
	}

	c := NewNoRefsRequestedError("acme")
	if errors.Is(a, c) {
		t.Error("different-kind fetch errors must not match")
	}
}

func TestCommitIDShort(t *testing.T) {
	long := CommitID("c0ffee1234567890abcdef")
	if long.Short() != "c0ffee123456" {
		t.Errorf("Short() = %q", long.Short())
	}
	short := CommitID("abc")
	if short.Short() != "abc" {
		t.Errorf("Short() = %q", short.Short())
	}
}
