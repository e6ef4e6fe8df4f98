// Package errors provides the structured error type used across geoarray.
//
// Errors carry a Phase (where the failure happened) and a Kind (what went
// wrong). The kinds that callers branch on have sentinel values for use
// with the standard errors.Is:
//
//	if errors.Is(err, geoerrors.ErrUnknownOperation) { ... }
//
// Build errors with the Builder or the convenience constructors:
//
//	err := geoerrors.New(geoerrors.PhaseDispatch, geoerrors.KindShapeMismatch).
//		Op("intersects").
//		Detail("operand lengths %d and %d do not broadcast", 3, 4).
//		Build()
//
// A per-element "no value" result is data, never an error.
package errors
