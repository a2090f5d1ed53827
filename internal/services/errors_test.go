package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrPlatform, "linkedin", "publish", "status 500", cause)
	if !errors.Is(err, ErrPlatform) {
		t.Fatalf("expected ErrPlatform marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "linkedin: publish: status 500") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := Wrap(nil, "worker", "claim", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Wrap(ErrValidation, "c", "o", "m", nil), false},
		{Wrap(ErrConfiguration, "c", "o", "m", nil), false},
		{Wrap(ErrNotFound, "c", "o", "m", nil), false},
		{Wrap(ErrPlatform, "c", "o", "m", nil), true},
		{Wrap(ErrTimeout, "c", "o", "m", nil), true},
		{errors.New("plain"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
