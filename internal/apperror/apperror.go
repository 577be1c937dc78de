// Package apperror defines the error taxonomy shared across the form pipeline.
package apperror

import (
	"errors"
	"fmt"
)

// Lookup failures map to 404-class responses at the boundary.
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrFormNotFound   = errors.New("form not found")
)

// IsNotFound reports whether err is one of the lookup sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound) || errors.Is(err, ErrFormNotFound)
}

// FetchError reports a remote document that could not be retrieved.
// Kind is "template" or "validator".
type FetchError struct {
	Kind   string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch %s at %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s at %s: status %d", e.Kind, e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StructuralError reports a fetched template that lacks required placeholders.
// It is a deployment defect, not a runtime condition.
type StructuralError struct {
	URL     string
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("template %s missing required placeholders %v", e.URL, e.Missing)
}

// LoadError reports tenant validator code that could not be compiled or
// exposes no callable default export.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load validator module %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ExecError reports a failure thrown inside tenant validator code.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("validator execution failed: %v", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// MailError reports a notification delivery failure.
type MailError struct {
	Provider string
	Err      error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("mail delivery via %s failed: %v", e.Provider, e.Err)
}

func (e *MailError) Unwrap() error { return e.Err }
