package domain

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Fixed error vocabulary crossing the core boundary. Adapters translate
// these into host-native representations; nothing else leaks out.
var (
	// ErrMalformedXML marks input that is not well-formed article markup.
	ErrMalformedXML = errors.New("malformed article xml")
	// ErrMissingField marks absent required top-level metadata.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidID marks an identifier that is not PMC + digits.
	ErrInvalidID = errors.New("invalid article identifier")
	// ErrNotOpenAccess marks an article outside the OA subset.
	ErrNotOpenAccess = errors.New("article is not in the open access subset")
)

// APIError is a non-success upstream HTTP response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// RetriesExhaustedError reports a transient failure that survived the
// whole retry budget.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// BundleError is a fatal whole-archive failure; per-entry validation
// failures never produce one.
type BundleError struct {
	ID  string
	Err error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle extraction for %s failed: %v", e.ID, e.Err)
}

func (e *BundleError) Unwrap() error { return e.Err }

// LoadError is a cache loader failure as delivered to every waiter
// coalesced on that load.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsTransient classifies an error for the retry layer: timeouts,
// connection resets/refusals, truncated responses, 429 and 5xx are
// retryable; DNS failures, other 4xx, and everything else are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var api *APIError
	if errors.As(err, &api) {
		return api.Status == 429 || api.Status >= 500
	}

	var dns *net.DNSError
	if errors.As(err, &dns) {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	return false
}
