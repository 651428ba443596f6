package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateOccurrence = errors.New("occurrence already generated for this month")
	ErrNotFound            = errors.New("not found")
	ErrInconsistentState   = errors.New("inconsistent state")
	ErrDependencyFailure   = errors.New("dependency failure")
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDay       = errors.New("invalid day of month")
	ErrEmptyDescription = errors.New("empty description")
)

var kinds = []error{ErrValidation, ErrDuplicateOccurrence, ErrNotFound, ErrInconsistentState, ErrDependencyFailure}

// Error is an engine failure of a given kind raised by operation Op.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(op, what, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("%s %s not found", what, id)}
}

func Duplicate(op, templateID string, m Month) error {
	return &Error{Kind: ErrDuplicateOccurrence, Op: op, Msg: fmt.Sprintf("occurrence for template %s already generated for %s", templateID, m)}
}

func Inconsistent(op, format string, args ...any) error {
	return &Error{Kind: ErrInconsistentState, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Dependency wraps a collaborator failure. Errors that already carry a kind
// are returned unchanged.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return &Error{Kind: ErrDependencyFailure, Op: op, Msg: "dependency call failed", Err: err}
}

// KindOf returns the kind sentinel carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsRetryable reports whether repeating the call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDependencyFailure)
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of an input.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OrNil returns v as an error only when it holds at least one field.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}
