package registrator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned when an operation needs an open session.
	ErrNotOpen = errors.New("registrator: session not open")

	// ErrAlreadyOpen is returned when Open is called on an open session.
	ErrAlreadyOpen = errors.New("registrator: session already open")

	// ErrUnknownSplit is returned by Multi.Switch for an unregistered name.
	ErrUnknownSplit = errors.New("registrator: unknown split")

	// ErrNoRegistrators is returned by NewMulti without registrators.
	ErrNoRegistrators = errors.New("registrator: no registrators")

	// ErrDuplicateSplit is returned by NewMulti when two registrators share a name.
	ErrDuplicateSplit = errors.New("registrator: duplicate split name")
)

// RegistrationError reports a record that could not be persisted.
//
// The original underlying error can be accessed via errors.Unwrap.
type RegistrationError struct {
	Split string
	Path  string
	cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registrator: register %s in %s: %v", e.Path, e.Split, e.cause)
}

func (e *RegistrationError) Unwrap() error { return e.cause }

// CloseError collects the failures of a fan-out Close or Abort.
type CloseError struct {
	Op     string
	Splits []string
	Errs   []error
}

func (e *CloseError) Error() string {
	if len(e.Errs) == 1 {
		return fmt.Sprintf("registrator: %s %s: %v", e.Op, e.Splits[0], e.Errs[0])
	}
	return fmt.Sprintf("registrator: %s failed for %d splits, first %s: %v", e.Op, len(e.Errs), e.Splits[0], e.Errs[0])
}

func (e *CloseError) Unwrap() []error { return e.Errs }
