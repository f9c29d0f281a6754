// Package errs declares the sentinel errors shared across thunderfit packages.
// Callers wrap them with fmt.Errorf("...: %w", err) and test with errors.Is.
package errs

import "errors"

var (
	// ErrModelConstruction reports a model that could not be built: a missing
	// input, a singular matrix or an unrecognized mode tag.
	ErrModelConstruction = errors.New("model construction failed")

	// ErrDegenerateFit reports a fit or aggregate whose denominator is zero.
	ErrDegenerateFit = errors.New("degenerate fit")

	// ErrUnrecognizedMode reports a mode tag or model variant a routine does not implement.
	ErrUnrecognizedMode = errors.New("unrecognized mode")

	// ErrShapeMismatch reports a response vector or matrix whose dimensions do not agree
	// with the model.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrEmptyCollection reports a reduction over a collection with no records.
	ErrEmptyCollection = errors.New("empty collection")
)
