package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether any AppError in the wrap chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Predefined error codes
const (
	CodeConfigInvalid            = "CONFIG_INVALID"
	CodeInvalidInput             = "INVALID_INPUT"
	CodeInternalError            = "INTERNAL_ERROR"
	CodeDimension                = "DIMENSION_ERROR"
	CodeNotFitted                = "NOT_FITTED"
	CodeDegenerateContrast       = "DEGENERATE_CONTRAST"
	CodeInsufficientPermutations = "INSUFFICIENT_PERMUTATIONS"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

// DimensionError reports mismatched matrix or vector shapes.
func DimensionError(format string, args ...interface{}) *AppError {
	return Newf(CodeDimension, format, args...)
}

// NotFitted reports a prediction or statistic requested before a fit.
func NotFitted(what string) *AppError {
	return Newf(CodeNotFitted, "%s requested before fit", what)
}

// DegenerateContrast reports a contrast with no usable degrees of freedom or variance.
func DegenerateContrast(format string, args ...interface{}) *AppError {
	return Newf(CodeDegenerateContrast, format, args...)
}

// InsufficientPermutations reports a maxT run that produced no usable null entries.
func InsufficientPermutations(requested, skipped int) *AppError {
	return Newf(CodeInsufficientPermutations,
		"no usable permutations: %d requested, %d skipped", requested, skipped)
}
