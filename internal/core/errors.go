// Package core contains the single source of truth for the engine's data
// model. It provides the physical type registry, the value union, the row
// and field metadata codecs, and the typed error kinds that flow through
// the evaluator as first-class values.
package core

import (
	"fmt"
)

// ErrorKind classifies an engine error.
type ErrorKind string

const (
	// ErrSyntax is a tokenization or parsing failure.
	ErrSyntax ErrorKind = "syntax"
	// ErrTypeMismatch covers every typing failure; see MismatchKind.
	ErrTypeMismatch ErrorKind = "type_mismatch"
	// ErrIllegalOperator reports an operator token with no meaning in context.
	ErrIllegalOperator ErrorKind = "illegal_operator"
	// ErrExact wraps an opaque I/O or lower-layer failure message.
	ErrExact ErrorKind = "exact"
	// ErrEmpty is the sentinel used as the default Error value.
	ErrEmpty ErrorKind = "empty"
)

// MismatchKind refines ErrTypeMismatch.
type MismatchKind string

const (
	MismatchNone                  MismatchKind = ""
	MismatchUnsupportedType       MismatchKind = "unsupported_type"
	MismatchUnrecognizedTypeName  MismatchKind = "unrecognized_type_name"
	MismatchArgumentsMismatched   MismatchKind = "arguments_mismatched"
	MismatchConstantValueExpected MismatchKind = "constant_value_expected"
	MismatchStringExpected        MismatchKind = "string_expected"
	MismatchValueTruncated        MismatchKind = "value_truncated"
)

// EngineError is the engine's error payload. It travels inside ErrorValue
// through the evaluator rather than unwinding, and doubles as a Go error at
// the package boundaries.
type EngineError struct {
	Kind     ErrorKind
	Mismatch MismatchKind
	Message  string
}

func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// EmptyError returns the sentinel error used as the Error type's default.
func EmptyError() *EngineError {
	return &EngineError{Kind: ErrEmpty}
}

// SyntaxError reports a parse failure over the offending source text.
func SyntaxError(text string) *EngineError {
	return &EngineError{Kind: ErrSyntax, Message: fmt.Sprintf("syntax error near %q", text)}
}

// IllegalOperatorError reports an operator token that has no meaning where
// it appeared.
func IllegalOperatorError(token string) *EngineError {
	return &EngineError{Kind: ErrIllegalOperator, Message: fmt.Sprintf("illegal use of operator %q", token)}
}

// ExactError wraps an opaque lower-layer failure.
func ExactError(message string) *EngineError {
	return &EngineError{Kind: ErrExact, Message: message}
}

// Exactf wraps a formatted lower-layer failure.
func Exactf(format string, args ...any) *EngineError {
	return ExactError(fmt.Sprintf(format, args...))
}

// UnsupportedTypeError reports a value whose type cannot serve where
// expected was required.
func UnsupportedTypeError(expected, got string) *EngineError {
	return &EngineError{
		Kind:     ErrTypeMismatch,
		Mismatch: MismatchUnsupportedType,
		Message:  fmt.Sprintf("expected %s but got %s", expected, got),
	}
}

// UnrecognizedTypeNameError reports an unknown name in type position.
func UnrecognizedTypeNameError(name string) *EngineError {
	return &EngineError{
		Kind:     ErrTypeMismatch,
		Mismatch: MismatchUnrecognizedTypeName,
		Message:  fmt.Sprintf("unrecognized type name %q", name),
	}
}

// ArgumentsMismatchedError reports an arity failure.
func ArgumentsMismatchedError(expected, got int) *EngineError {
	return &EngineError{
		Kind:     ErrTypeMismatch,
		Mismatch: MismatchArgumentsMismatched,
		Message:  fmt.Sprintf("expected %d argument(s) but got %d", expected, got),
	}
}

// ConstantValueExpectedError reports an expression that the pure folder
// could not reduce to a constant.
func ConstantValueExpectedError(code string) *EngineError {
	return &EngineError{
		Kind:     ErrTypeMismatch,
		Mismatch: MismatchConstantValueExpected,
		Message:  fmt.Sprintf("constant value expected near %q", code),
	}
}

// StringExpectedError reports a non-string where a string was required.
func StringExpectedError(gotKind string) *EngineError {
	return &EngineError{
		Kind:     ErrTypeMismatch,
		Mismatch: MismatchStringExpected,
		Message:  fmt.Sprintf("string expected but got %s", gotKind),
	}
}

// ValueTruncatedError reports a value wider than its bounded column.
func ValueTruncatedError(column string, max, got int) *EngineError {
	return &EngineError{
		Kind:     ErrTypeMismatch,
		Mismatch: MismatchValueTruncated,
		Message:  fmt.Sprintf("value for %q exceeds declared width (%d > %d)", column, got, max),
	}
}
