package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic converted into an error. It carries
// the original panic value and the stack captured at recovery time.
type PanicError struct {
	// PanicValue is the value passed to panic().
	PanicValue interface{}

	// StackTrace is the stack captured when the panic was recovered.
	StackTrace string

	// Operation names the method the panic escaped from.
	Operation string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String is Error plus the captured stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError captures the current stack and wraps the panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error on the deferred path. The
// public entry points defer it so a bug deep in the tree grower
// surfaces as an error instead of tearing down the caller:
//
//	func (gbr *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
//		defer errors.Recover(&err, "GradientBoostingRegressor.Fit")
//		// ...
//	}
//
// When err already holds an error, the panic text wraps around it and
// the original stays reachable through errors.Is.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	if *err != nil {
		*err = fmt.Errorf("panic in %s: %v (original error: %w)", operation, r, *err)
		return
	}
	*err = NewPanicError(operation, r)
}

// SafeExecute runs fn and converts a panic inside it into an error:
//
//	err := errors.SafeExecute("tree rendering", func() error {
//		return render()
//	})
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
