package strata

import (
	"errors"
	"fmt"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/engine"
	"github.com/hupe1980/strata/sequence"
	"github.com/hupe1980/strata/vtable"
)

var (
	// ErrNotFound is returned when an operation targets a row that does not
	// exist or is already tombstoned.
	ErrNotFound = errors.New("not found")

	// ErrNoObject is returned when a dependent write names a base id with no
	// live entity or tree node behind it.
	ErrNoObject = errors.New("base object does not exist")

	// ErrInvalidValue is returned for malformed values, or when a numeric
	// operation hits a non-numeric slot.
	ErrInvalidValue = errors.New("invalid value")

	// ErrConflict is returned when a concurrent writer got there first, e.g.
	// a duplicate live row or a failed compare-and-swap.
	ErrConflict = errors.New("conflicting concurrent write")

	// ErrIDExhausted is returned when the configured id range has no ids left.
	ErrIDExhausted = errors.New("id range exhausted")
)

// AliasCollisionError indicates that an alias value is already claimed by a
// different owner within the namespace. Owner identifies the current holder.
//
// The original underlying error can be accessed via errors.Unwrap.
type AliasCollisionError struct {
	Value string
	Ctx   core.Ctx
	Owner core.ID
	cause error
}

func (e *AliasCollisionError) Error() string {
	return fmt.Sprintf("alias %q already in use in ctx %d by %d", e.Value, e.Ctx, e.Owner)
}

func (e *AliasCollisionError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ac *engine.AliasCollisionError
	if errors.As(err, &ac) {
		return &AliasCollisionError{Value: ac.Value, Ctx: ac.Ctx, Owner: ac.Owner, cause: err}
	}

	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, engine.ErrNoObject) {
		return fmt.Errorf("%w: %w", ErrNoObject, err)
	}
	if errors.Is(err, engine.ErrInvalidValue) {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if errors.Is(err, vtable.ErrConstraintViolation) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if errors.Is(err, sequence.ErrExhausted) {
		return fmt.Errorf("%w: %w", ErrIDExhausted, err)
	}

	return err
}
