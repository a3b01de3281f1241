package shared

import (
	"errors"
	"strings"
)

// Error classes shared by every write path. Domain errors wrap one of these so
// transports can map them without knowing the domain.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates user-correctable input; nothing was mutated.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a concurrent incompatible mutation; refetch and retry.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated indicates a missing or malformed actor identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTransientIO indicates a network or storage failure; the whole call is safe to retry.
	ErrTransientIO = errors.New("transient io failure")
)

// ValidationError describes one offending field. Warning marks sanity-bound
// rejections that are not hard business rules.
type ValidationError struct {
	Field   string
	Message string
	Warning bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors collects every field problem found in one request.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match the collection.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Warning reports whether every collected problem is warning class.
func (v ValidationErrors) Warning() bool {
	if len(v) == 0 {
		return false
	}
	for _, e := range v {
		if !e.Warning {
			return false
		}
	}
	return true
}

// OrNil returns nil for an empty collection so callers can return it directly.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Invalid builds a single-field validation error.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
