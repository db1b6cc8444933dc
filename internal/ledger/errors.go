package ledger

import (
	"errors"
	"fmt"
)

// Typed failures surfaced to the orchestrator. Everything else coming out of
// the ledger is a persistence failure and treated as fatal to the turn.
var (
	// ErrNotFound indicates no reservation matches the id or code.
	ErrNotFound = errors.New("ledger: reservation not found")

	// ErrAlreadyCancelled indicates a mutation on a cancelled reservation.
	// A second cancel is an error, not a no-op: the caller should tell the
	// patient instead of silently succeeding.
	ErrAlreadyCancelled = errors.New("ledger: reservation already cancelled")

	// ErrSlotConflict indicates the requested window was taken between offer
	// and commit. Re-validation at commit time is the system's only
	// concurrency guard.
	ErrSlotConflict = errors.New("ledger: requested window is no longer available")
)

// ValidationError reports malformed or placeholder input. Recovered locally
// by re-prompting the patient.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
