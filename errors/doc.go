// Package errors provides structured error types for the wacli build pipeline.
//
// Errors are categorized by Phase (where in the pipeline the error occurred)
// and Kind (error category). The Error type includes a field path and a cause
// chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEmit, errors.KindPlaceholder).
//		Path("template").
//		Detail("placeholder {{RUN_BODY}} missing").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Duplicate(errors.PhaseScan, "command", "greet")
//	err := errors.NotFound(errors.PhaseVerify, "export", "cabi_realloc")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
