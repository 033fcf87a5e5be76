package mutate

import (
	"errors"
	"fmt"
)

// ErrAlreadyMember: the identity is already in the item's membership set.
var ErrAlreadyMember = errors.New("already in your bag")

// ErrNotMember: the identity is not in the item's membership set.
var ErrNotMember = errors.New("not in your bag")

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError wraps a store/network failure. The mirror is never rolled
// back on one of these; the prior state stays visible and the caller may
// retry.
type UnavailableError struct {
	Op  string
	Err error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e UnavailableError) Unwrap() error { return e.Err }
