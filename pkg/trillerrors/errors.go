// Package trillerrors provides structured errors for the batch and
// collection layer, with error categorization, key-value details and stack
// capture.
//
// # Fault classes
//
// Three classes of failure exist in this layer:
//
//   - Capacity and precondition faults represent misuse of an API (adding to
//     a sealed batch, removing from an empty heap, growing a heap past its
//     maximum). They halt the current step: Fail panics with an *Error and
//     callers are not expected to recover.
//   - Ingress ordering faults are returned as ordinary errors so the ingress
//     adapter can decide what to do with the offending event.
//   - Leak diagnostics are never errors; they are reported as data.
//
// # Basic Usage
//
//	err := trillerrors.New(trillerrors.ErrorTypeConfig, "batch size must be positive").
//	    WithDetail("batch_size", n)
//
//	if trillerrors.IsType(err, trillerrors.ErrorTypeIngressOrder) {
//	    // drop or buffer the event
//	}
package trillerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCapacity represents a collection that cannot grow any further
	ErrorTypeCapacity ErrorType = "capacity"
	// ErrorTypePrecondition represents an API called in a state that forbids it
	ErrorTypePrecondition ErrorType = "precondition"
	// ErrorTypeIngressOrder represents an event arriving earlier than its partition allows
	ErrorTypeIngressOrder ErrorType = "ingress_order"
	// ErrorTypeCodec represents checkpoint encode/decode errors
	ErrorTypeCodec ErrorType = "codec"
	// ErrorTypeIO represents file open, map and read failures
	ErrorTypeIO ErrorType = "io"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already an *Error its stack is preserved. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error (or an error it wraps) is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsFault reports whether the error is a halting capacity or precondition
// fault.
func IsFault(err error) bool {
	return IsType(err, ErrorTypeCapacity) || IsType(err, ErrorTypePrecondition)
}

// Fail raises a halting fault. It never returns.
func Fail(errType ErrorType, format string, args ...interface{}) {
	panic(&Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	})
}

// Recover converts a recovered panic value carrying an *Error back into an
// error. Other panic values are re-raised. It is meant for outer layers
// that abort a batch-processing step:
//
//	defer func() { err = trillerrors.Recover(recover(), err) }()
func Recover(r interface{}, err error) error {
	if r == nil {
		return err
	}
	if e, ok := r.(*Error); ok {
		return e
	}
	panic(r)
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
