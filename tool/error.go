package tool

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ErrorCodeToolNotFound is returned when a request names a tool absent
	// from the registry.
	ErrorCodeToolNotFound = "TOOL_NOT_FOUND"
	// ErrorCodeDuplicateTool is returned when a registration collides with an
	// existing tool name.
	ErrorCodeDuplicateTool = "DUPLICATE_TOOL"
	// ErrorCodeRegistryFrozen is returned when registration is attempted
	// after the app has entered its run loop.
	ErrorCodeRegistryFrozen = "REGISTRY_FROZEN"
	// ErrorCodeUnknownAction is returned when the input discriminator is
	// missing or outside the schema's action vocabulary.
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
	// ErrorCodeMissingField is returned when a required field is absent.
	ErrorCodeMissingField = "MISSING_FIELD"
	// ErrorCodeTypeMismatch is returned when a declared field carries a value
	// of the wrong type.
	ErrorCodeTypeMismatch = "TYPE_MISMATCH"
	// ErrorCodeExecutionFailed is returned for handler failures, including
	// panics recovered at the execute boundary.
	ErrorCodeExecutionFailed = "EXECUTION_FAILED"
	// ErrorCodeInvalidConfig is returned for construction-time setup errors.
	ErrorCodeInvalidConfig = "INVALID_CONFIG"
)

// Error is a structured failure that can flow across the dispatcher, the
// transport, and client code without losing its machine-readable code.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return ErrorCodeExecutionFailed
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError builds a structured error with the given code and formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying cause, preserving its message.
func WrapError(code string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

// AsError extracts a structured *Error from an error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// ErrorCode returns the structured code of err, or the empty string when err
// carries none.
func ErrorCode(err error) string {
	if toolErr, ok := AsError(err); ok && toolErr != nil {
		return toolErr.Code
	}
	return ""
}

// IsValidation reports whether err is one of the input-validation failures.
func IsValidation(err error) bool {
	switch ErrorCode(err) {
	case ErrorCodeUnknownAction, ErrorCodeMissingField, ErrorCodeTypeMismatch:
		return true
	}
	return false
}
