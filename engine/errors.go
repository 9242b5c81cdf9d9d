package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/strata/core"
)

var (
	// ErrNotFound is returned when an operation targets a slot with no live
	// row.
	ErrNotFound = errors.New("engine: not found")

	// ErrNoObject is returned when a dependent write names a base id with no
	// live entity or tree node behind it.
	ErrNoObject = errors.New("engine: base object does not exist")

	// ErrInvalidValue is returned when a value sets both or neither of the
	// numeric and opaque-bytes storage classes, or when a numeric operation
	// hits a non-numeric slot.
	ErrInvalidValue = errors.New("engine: invalid value")
)

// AliasCollisionError indicates that an alias value is already claimed by a
// different owner within the namespace. The compound alias write it aborted
// left nothing behind.
type AliasCollisionError struct {
	Value string
	Ctx   core.Ctx
	Owner core.ID
}

func (e *AliasCollisionError) Error() string {
	return fmt.Sprintf("engine: alias %q already in use in ctx %d by %d", e.Value, e.Ctx, e.Owner)
}
