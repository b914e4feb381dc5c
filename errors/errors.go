package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Error is a coded error with optional context and cause.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
// This lets callers match on a code with errors.Is(err, &Error{Code: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// New creates a coded error.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// WrapWithContext wraps err with a code, message and structured context.
// Returns nil when err is nil.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Context: ctx, Cause: err}
}

// GetCode returns the code of the outermost *Error in the chain,
// or CodeUnknown when err carries none.
func GetCode(err error) ErrorCode {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var coded *Error
		if !stderrors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Cause
	}
	return false
}
