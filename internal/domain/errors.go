package domain

import (
	"errors"
	"fmt"
)

// ConflictError is returned when a (zone, target) slot is already used by another cue.
type ConflictError struct {
	Zone     string
	Target   int
	Occupant string // name of the occupying cue
	ID       int    // id of the occupying cue
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("zone %s target %d is already used by %q (cue %d)", e.Zone, e.Target, e.Occupant, e.ID)
}

// InvalidInputError is returned when a required field is missing or out of range.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrTopologyInconsistency marks a cue address with no resolvable receiver.
// The health evaluator reports these addresses rather than returning this error.
var ErrTopologyInconsistency = errors.New("no receiver configured for cue address")

// IsConflict checks if an error is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsInvalidInput checks if an error is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
