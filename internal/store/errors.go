package store

import "errors"

// Error taxonomy for the projection engine. Every error aborts and rolls
// back the enclosing batch transaction; nothing is caught-and-skipped.
var (
	// ErrNotFound means a referenced entity or version row is absent. It
	// usually indicates an out-of-order or missing predecessor event.
	ErrNotFound = errors.New("not found")

	// ErrValidation means a first-time creation is missing required initial
	// values, or an update matched no known field.
	ErrValidation = errors.New("validation failed")

	// ErrIntegrity means an entity's currentVersionId points at a version
	// row that cannot be loaded, a corrupted chain. Never auto-repaired.
	ErrIntegrity = errors.New("version chain corrupted")

	// ErrArithmetic means a malformed numeric string arrived from upstream.
	ErrArithmetic = errors.New("malformed numeric string")

	// ErrUndoOrder means an undo tried to pop a version that is not the
	// most recently applied one for that entity on its stream. Undo is
	// strictly LIFO; out-of-order undo would silently corrupt history, so
	// it is surfaced as its own fatal error instead.
	ErrUndoOrder = errors.New("undo out of order")
)
