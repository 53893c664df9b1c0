// Package errors provides structured error types for the jvm-rewrite module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the class name, a location path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindMalformedUnit).
//		Unit("com/example/Foo").
//		Path("run", "Code").
//		Detail("branch target %d is not an instruction boundary", 17).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MalformedUnit("bad magic", nil)
//	err := errors.EncodingOverflow(path, 70000, "max code length 65535")
//
// All errors implement the standard error interface and support errors.Is/As.
// The sentinels ErrMalformedUnit and ErrEncodingOverflow match any error of
// the same phase and kind.
package errors
