// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"
)

// ErrorKind is the runtime-error taxonomy of spec.md §7: TypeMismatch,
// IndexError, KeyError, NameError, ArityError, NumericError, FileError,
// ImportError for errors raised from opcodes and built-ins, plus
// Internal for the internal-consistency-error class (invalid opcode,
// malformed bytecode, stack underflow, mismatched enter/leave) — bugs in
// the compiler or VM rather than the running program.
type ErrorKind string

const (
	TypeMismatch ErrorKind = "TypeMismatch"
	IndexError   ErrorKind = "IndexError"
	KeyError     ErrorKind = "KeyError"
	NameError    ErrorKind = "NameError"
	ArityError   ErrorKind = "ArityError"
	NumericError ErrorKind = "NumericError"
	FileError    ErrorKind = "FileError"
	ImportError  ErrorKind = "ImportError"
	Internal     ErrorKind = "InternalError"
)

// StackFrame represents a single frame in the call stack.
// It captures information about where execution is occurring.
type StackFrame struct {
	Name       string // function/method name
	File       string // source file the function was compiled from
	IP         int    // instruction pointer at time of call
	SourceLine int    // source line number (0 if unknown)
}

// RuntimeError represents a runtime error with stack trace information.
// Its Error() string follows spec.md §7's user-visible format:
// "<file>:<line>: <kind>: <message>", using the innermost frame's
// file/line, followed by the rest of the call stack.
type RuntimeError struct {
	Kind       ErrorKind
	Message    string
	StackTrace []StackFrame
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	file, line := "?", 0
	if len(e.StackTrace) > 0 {
		top := e.StackTrace[len(e.StackTrace)-1]
		file, line = top.File, top.SourceLine
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: %s: %s", file, line, e.Kind, e.Message)

	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			fmt.Fprintf(&b, "\n  at %s", frame.Name)
			if frame.SourceLine > 0 {
				fmt.Fprintf(&b, " (%s:%d)", frame.File, frame.SourceLine)
			}
			fmt.Fprintf(&b, " [IP: %d]", frame.IP)
		}
	}

	return b.String()
}

// newRuntimeError creates a new RuntimeError with the given kind, message
// and call stack.
func newRuntimeError(kind ErrorKind, message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{
		Kind:       kind,
		Message:    message,
		StackTrace: stack,
	}
}
