package model

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a collaborator (checkout, mail, lookup,
	// render) that is unreachable or erroring. Always recoverable: the order
	// state is left unchanged and the caller may retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrPaymentUnverified is the fail-closed outcome: recording is never
	// unlocked without an explicit paid confirmation.
	ErrPaymentUnverified = errors.New("payment not verified")

	// ErrTranscriptionFailed routes the order back to recording with a retry
	// option. Covers both transport failures and empty transcripts.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrLookupEmpty means civic lookup found no representatives for the
	// sender address. Blocks dispatch; the user should correct the address.
	ErrLookupEmpty = errors.New("no representatives found for address")

	ErrDraftNotFound     = errors.New("draft not found")
	ErrInvalidTransition = errors.New("operation not allowed in current state")
)

// ValidationError blocks a transition on bad user input. It is surfaced
// inline and never logged as a system fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
