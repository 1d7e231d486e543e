package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Workflow errors, mapped to HTTP codes in the delivery layer.
var (
	ErrNotFound             = errors.New("not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrRoleMismatch         = errors.New("role mismatch")
	ErrAlreadyAssigned      = errors.New("student already has an assigned dissertation")
	ErrNotAvailable         = errors.New("dissertation is not available")
	ErrAlreadyProcessed     = errors.New("application has already been processed")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrDuplicateApplication = errors.New("application already exists")

	// ErrInternal marks unexpected persistence or infrastructure failures.
	ErrInternal = errors.New("internal error")
)

// Internal wraps a persistence failure so that errors.Is(err, ErrInternal)
// holds while the driver error stays reachable.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrInternal, err))
}

// ValidationError carries per-field constraint failures.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
