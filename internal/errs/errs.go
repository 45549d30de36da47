// Package errs collects the sentinel errors shared across the core so
// callers can use errors.Is instead of string matching.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedURI is returned when a proxy URI does not match its
	// scheme's grammar.
	ErrMalformedURI = errors.New("malformed proxy uri")
	// ErrUnsupportedProtocol is returned when a URI scheme or a structured
	// entry's "type" field names a protocol outside the five supported.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	// ErrDecodeFailed is returned when base64 or structured-text decoding
	// of a subscription body fails outright.
	ErrDecodeFailed = errors.New("subscription body decode failed")

	// ErrSubscriptionListMissing is a run-fatal error: the input file is
	// absent or unreadable.
	ErrSubscriptionListMissing = errors.New("subscription list file missing or unreadable")
	// ErrRunCancelled is a run-fatal error: the caller requested
	// cancellation before or during the run.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrPersistFailed is a run-fatal error: the store could not commit
	// its end-of-run snapshot.
	ErrPersistFailed = errors.New("store persistence failed")
)

// WrapProtocol annotates ErrUnsupportedProtocol with the offending scheme.
func WrapProtocol(scheme string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, scheme)
}

// WrapMalformed annotates ErrMalformedURI with a human-readable reason.
func WrapMalformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedURI, reason)
}

// WrapDecode annotates ErrDecodeFailed with the underlying cause.
func WrapDecode(cause error) error {
	return fmt.Errorf("%w: %v", ErrDecodeFailed, cause)
}
