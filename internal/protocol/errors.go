package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind names a failure class reported to callers.
type ErrorKind string

const (
	ElementNotFound        ErrorKind = "ElementNotFound"
	ElementDisabled        ErrorKind = "ElementDisabled"
	OptionNotFound         ErrorKind = "OptionNotFound"
	NotACheckbox           ErrorKind = "NotACheckbox"
	UnknownInstructionKind ErrorKind = "UnknownInstructionKind"
	PageValidationError    ErrorKind = "PageValidationError"
	NavigationTimeout      ErrorKind = "NavigationTimeout"
	InvalidDocument        ErrorKind = "InvalidDocument"
)

// Sentinels for errors.Is comparisons against a *Error of the same kind.
var (
	ErrElementNotFound        = &Error{Kind: ElementNotFound}
	ErrElementDisabled        = &Error{Kind: ElementDisabled}
	ErrOptionNotFound         = &Error{Kind: OptionNotFound}
	ErrNotACheckbox           = &Error{Kind: NotACheckbox}
	ErrUnknownInstructionKind = &Error{Kind: UnknownInstructionKind}
	ErrPageValidation         = &Error{Kind: PageValidationError}
	ErrNavigationTimeout      = &Error{Kind: NavigationTimeout}
	ErrInvalidDocument        = &Error{Kind: InvalidDocument}
)

// Error is a typed automation failure.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// NewError builds an Error with a formatted detail message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error that keeps cause in the chain.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
