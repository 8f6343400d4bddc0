package transform

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the render graph and its history.
// Callers test for them with errors.Is; the returned errors carry the
// offending node id or parameter name as context.
var (
	// ErrInvalidParameter is returned when a value falls outside the
	// accepted domain of a node kind. The node is left untouched.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound is returned when an operation references a node or
	// group that is not part of the live graph.
	ErrNotFound = errors.New("node not found")

	// ErrStaleReference is reported when a history entry refers to a node
	// that no longer exists. The other restores of the entry still run.
	ErrStaleReference = errors.New("stale node reference")

	// ErrNothingToUndo is returned by Undo at the start of the history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo at the end of the history.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrComputeFailure wraps an error returned by a kernel. The node
	// keeps its last good output.
	ErrComputeFailure = errors.New("compute failure")

	// ErrUnknownKind is returned when no kernel is registered for a kind.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrDuplicateKind is returned when a kind is registered twice.
	ErrDuplicateKind = errors.New("duplicate node kind")
)

// InvalidParam builds an ErrInvalidParameter error for the named parameter.
// Kernels use it from their Params.Set implementations.
func InvalidParam(name string, value any, reason string) error {
	return fmt.Errorf("%w: %s=%v: %s", ErrInvalidParameter, name, value, reason)
}

// UnknownParam builds an ErrInvalidParameter error for a name the kind does not define.
func UnknownParam(kind Kind, name string) error {
	return fmt.Errorf("%w: %q is not a parameter of %s", ErrInvalidParameter, name, kind)
}

func notFound(id ID) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
