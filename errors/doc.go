// Package errors provides structured error types for the interp-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: field path, the runtime
// exception type where one was in flight, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindOverflow).
//		Path("config", "retries").
//		GoType("int8").
//		Detail("value 4096 overflows int8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BorrowConflict(errors.PhaseBorrow, "Counter")
//	err := errors.Raised(errors.PhaseCall, "TypeError", "expected int")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
