package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrInputValidation
	ErrNotFound
	ErrAlreadyExists
	ErrConflict
	ErrInvalidTimeline
	ErrLengthMismatch
	ErrMediaOpen
	ErrEmptyInput
	ErrFileNotFound
	ErrComposition
	ErrRemoteService
	ErrConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInputValidation:
		return "InputValidation"
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrConflict:
		return "Conflict"
	case ErrInvalidTimeline:
		return "InvalidTimeline"
	case ErrLengthMismatch:
		return "LengthMismatch"
	case ErrMediaOpen:
		return "MediaOpen"
	case ErrEmptyInput:
		return "EmptyInput"
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrComposition:
		return "Composition"
	case ErrRemoteService:
		return "RemoteService"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Error is the typed error carried through the pipeline.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]any),
	}
}

func Wrap(err error, kind ErrorKind, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or ErrUnknown.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrUnknown
}

// SafeExecute runs fn and converts a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = New(ErrUnknown, "runtime error: %v", r)
		}
	}()

	return fn()
}
