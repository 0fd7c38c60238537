// Package staterr defines the tagged failures returned by every analysis.
//
// Each failure carries a Kind (the coarse category a caller branches on) and
// a Code (the finer reason, stable across releases and safe to emit in JSON).
// Match categories with errors.Is against the exported sentinels:
//
//	if errors.Is(err, staterr.ErrSingularMatrix) { ... }
package staterr

import (
	"errors"
	"fmt"
)

// Kind is the category of an analysis failure.
type Kind int

const (
	KindInput Kind = iota + 1
	KindSampleSize
	KindDegenerateFactor
	KindSingularMatrix
	KindZeroVariance
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input error"
	case KindSampleSize:
		return "sample size error"
	case KindDegenerateFactor:
		return "degenerate factor"
	case KindSingularMatrix:
		return "singular matrix"
	case KindZeroVariance:
		return "zero variance"
	default:
		return "unknown error"
	}
}

// Finer reasons carried in Error.Code.
const (
	CodeEmptySelection         = "empty_selection"
	CodeUnknownColumn          = "unknown_column"
	CodeWrongColumnType        = "wrong_column_type"
	CodeLengthMismatch         = "length_mismatch"
	CodeDimensionMismatch      = "dimension_mismatch"
	CodeUnsupportedType        = "unsupported_type"
	CodeMissingValue           = "missing_value"
	CodeInvalidOption          = "invalid_option"
	CodeInsufficientSampleSize = "insufficient_sample_size"
	CodeInsufficientObs        = "insufficient_observations"
	CodeGroupCount             = "group_count"
	CodeTooFewLevels           = "too_few_levels"
	CodeSingularDesign         = "singular_design"
	CodeNotConverged           = "not_converged"
	CodeConstantColumn         = "constant_column"
	CodeNonFinite              = "nonfinite_result"
)

// Error is a tagged analysis failure.
type Error struct {
	Kind Kind
	Code string
	// Op names the operation that failed, e.g. "ols.Fit".
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is a sentinel of the same kind, or an error with
// the same kind and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels matching every error of their kind.
var (
	ErrInput            = &Error{Kind: KindInput}
	ErrSampleSize       = &Error{Kind: KindSampleSize}
	ErrDegenerateFactor = &Error{Kind: KindDegenerateFactor}
	ErrSingularMatrix   = &Error{Kind: KindSingularMatrix}
	ErrZeroVariance     = &Error{Kind: KindZeroVariance}
)

// New builds a tagged error with a formatted message.
func New(kind Kind, code, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error.
func Wrap(kind Kind, code, op string, err error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}

// Input is shorthand for New(KindInput, ...).
func Input(code, op, format string, args ...any) *Error {
	return New(KindInput, code, op, format, args...)
}

// KindOf extracts the Kind from err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind, true
	}
	return 0, false
}

// CodeOf extracts the Code from err, or "" when err is not tagged.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}
