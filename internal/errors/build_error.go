// Package errors provides standardized error types for hash table builds.
// This package defines BuildError for consistent error handling across
// all public APIs, with operation context, a numeric build code and error
// wrapping support.
package errors

import (
	"fmt"
)

// Build codes written to a build's shared error cell.
const (
	CodeOK                = 0
	CodeOneToOneViolation = -1
	CodeTableFull         = -2
)

// BuildError represents standardized errors across all hash table operations
type BuildError struct {
	Op      string // Operation name (e.g., "FillBaseline", "BuildOneToMany")
	Code    int    // Build code reported by the parallel phase, 0 for input errors
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Code != CodeOK {
		return fmt.Sprintf("%s operation failed with code %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// Errors carrying a build code match any error with the same code
// regardless of the operation that produced it.
func (e *BuildError) Is(target error) bool {
	be, ok := target.(*BuildError)
	if !ok {
		return false
	}
	if be.Code != CodeOK {
		return e.Code == be.Code
	}
	return e.Op == be.Op && e.Message == be.Message
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *BuildError {
	return &BuildError{
		Op:      op,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported column types
func NewUnsupportedTypeError(op, typeName string) *BuildError {
	return &BuildError{
		Op:      op,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *BuildError {
	return &BuildError{
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

// FromCode converts a build code into an error. CodeOK yields nil.
func FromCode(op string, code int) error {
	switch code {
	case CodeOK:
		return nil
	case CodeOneToOneViolation:
		return &BuildError{Op: op, Code: code, Message: ErrOneToOneViolation.Message}
	case CodeTableFull:
		return &BuildError{Op: op, Code: code, Message: ErrTableFull.Message}
	default:
		return &BuildError{Op: op, Code: code, Message: "unknown build failure"}
	}
}

// Predefined error variables for common cases
var (
	// ErrOneToOneViolation indicates a key matched more than one row in a one-to-one build
	ErrOneToOneViolation = &BuildError{
		Op:      "fill",
		Code:    CodeOneToOneViolation,
		Message: "key maps to more than one row, join is not one-to-one",
	}

	// ErrTableFull indicates linear probing wrapped around without a free slot
	ErrTableFull = &BuildError{
		Op:      "fill",
		Code:    CodeTableFull,
		Message: "hash table is full, rebuild with a larger entry count",
	}

	// ErrTooManyKeyComponents indicates a key wider than the coalescing limit
	ErrTooManyKeyComponents = &BuildError{
		Op:      "validation",
		Message: "too many key components",
	}
)
