package domain

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &APIError{Status: 429}, true},
		{"server error", &APIError{Status: 503}, true},
		{"not found", &APIError{Status: 404}, false},
		{"bad request", &APIError{Status: 400}, false},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "example.invalid"}, false},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"truncated body", io.ErrUnexpectedEOF, true},
		{"plain failure", errors.New("boom"), false},
	}

	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Fatalf("%s: IsTransient = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsTransientWrappedAPIError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", &APIError{Status: 500, Message: "oops"})
	if !IsTransient(err) {
		t.Fatal("wrapped 500 should stay transient")
	}
}

func TestRetriesExhaustedUnwraps(t *testing.T) {
	t.Parallel()

	inner := &APIError{Status: 502}
	err := &RetriesExhaustedError{Attempts: 4, Last: inner}

	var api *APIError
	if !errors.As(err, &api) || api.Status != 502 {
		t.Fatalf("expected to unwrap APIError, got %v", err)
	}
}
