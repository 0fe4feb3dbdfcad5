// Package errors provides the error taxonomy shared by every package in the
// adapter service. Errors are classified so that callers can decide how to
// react without string matching: invalid input is never retried, not-found
// conditions map to lookup failures, transient errors come from upstream
// transports and may be retried by the caller.
package errors

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error for handling purposes.
type Class int

const (
	// ClassInvalid marks client-caused errors: unknown, missing, or
	// mistyped plugin parameters, malformed payloads, bad configuration.
	ClassInvalid Class = iota
	// ClassNotFound marks lookups of entities that do not exist.
	ClassNotFound
	// ClassTransient marks upstream transport failures that may succeed
	// on a later attempt.
	ClassTransient
	// ClassFatal marks unrecoverable conditions that should stop the
	// service.
	ClassFatal
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case ClassInvalid:
		return "invalid"
	case ClassNotFound:
		return "not_found"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Lookup errors
	ErrDatasourceNotFound = errors.New("datasource not found")
	ErrImportNotFound     = errors.New("import not found")
	ErrNoImports          = errors.New("no imports for datasource")
	ErrEventNotFound      = errors.New("event not found")

	// Plugin resolution errors
	ErrUnknownProtocol = errors.New("unknown protocol type")
	ErrUnknownFormat   = errors.New("unknown format type")

	// Data processing errors
	ErrInterpretation = errors.New("payload interpretation failed")
	ErrFetchFailed    = errors.New("upstream fetch failed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrIDAssigned    = errors.New("id is assigned by the server and must not be set")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ClassifiedError wraps an error with its classification.
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsInvalid checks if an error was caused by invalid client input.
func IsInvalid(err error) bool {
	return hasClass(err, ClassInvalid) ||
		errors.Is(err, ErrInterpretation) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrIDAssigned) ||
		errors.Is(err, ErrUnknownProtocol) ||
		errors.Is(err, ErrUnknownFormat)
}

// IsNotFound checks if an error is a lookup failure.
func IsNotFound(err error) bool {
	return hasClass(err, ClassNotFound) ||
		errors.Is(err, ErrDatasourceNotFound) ||
		errors.Is(err, ErrImportNotFound) ||
		errors.Is(err, ErrNoImports) ||
		errors.Is(err, ErrEventNotFound)
}

// IsTransient checks if an error may succeed on retry.
func IsTransient(err error) bool {
	return hasClass(err, ClassTransient) ||
		errors.Is(err, ErrFetchFailed) ||
		errors.Is(err, ErrStorageUnavailable)
}

// IsFatal checks if an error is unrecoverable.
func IsFatal(err error) bool {
	return hasClass(err, ClassFatal)
}

func hasClass(err error, class Class) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == class
	}
	return false
}

// Classify returns the error class for an error. Unclassified errors
// default to transient so callers may retry them.
func Classify(err error) Class {
	switch {
	case IsInvalid(err):
		return ClassInvalid
	case IsNotFound(err):
		return ClassNotFound
	case IsFatal(err):
		return ClassFatal
	default:
		return ClassTransient
	}
}

// newClassified creates a new classified error. Use the Wrap* helpers.
func newClassified(class Class, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid client input with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ClassInvalid, wrapped, component, method, wrapped.Error())
}

// WrapNotFound wraps an error as a lookup failure with context.
func WrapNotFound(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ClassNotFound, wrapped, component, method, wrapped.Error())
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ClassTransient, wrapped, component, method, wrapped.Error())
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ClassFatal, wrapped, component, method, wrapped.Error())
}
