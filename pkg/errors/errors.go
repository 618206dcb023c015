package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType categorizes domain errors
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeIO              ErrorType = "io"
	ErrorTypeProcess         ErrorType = "process"
	ErrorTypeNotRunning      ErrorType = "not_running"
	ErrorTypeStaleRecord     ErrorType = "stale_record"
	ErrorTypeShutdownTimeout ErrorType = "shutdown_timeout"
	ErrorTypePermission      ErrorType = "permission"
	ErrorTypeResourceQuery   ErrorType = "resource_query"
	ErrorTypeCancelled       ErrorType = "cancelled"
	ErrorTypeInternal        ErrorType = "internal"
)

// DomainError is the error type returned by all pidguard packages
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Context[k])
		}
		sb.WriteString("]")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by type, so errors.Is(err, &DomainError{Type: ...}) works
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithContext attaches a key/value pair and returns the same error for chaining
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeValidation, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeIO, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeProcess, message, cause)
}

func NewNotRunningError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeNotRunning, message, cause)
}

func NewStaleRecordError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeStaleRecord, message, cause)
}

func NewShutdownTimeoutError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeShutdownTimeout, message, cause)
}

func NewPermissionError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypePermission, message, cause)
}

func NewResourceQueryError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeResourceQuery, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeCancelled, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeInternal, message, cause)
}

// IsType reports whether any error in err's chain is a DomainError of the given type
func IsType(err error, errorType ErrorType) bool {
	return errors.Is(err, &DomainError{Type: errorType})
}

func IsValidationError(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

func IsNotRunningError(err error) bool {
	return IsType(err, ErrorTypeNotRunning)
}

func IsPermissionError(err error) bool {
	return IsType(err, ErrorTypePermission)
}

func IsResourceQueryError(err error) bool {
	return IsType(err, ErrorTypeResourceQuery)
}
