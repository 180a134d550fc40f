package manager

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrInvalidNamespace is returned for namespaces that cannot name a module.
var ErrInvalidNamespace = errors.New("invalid namespace")

// ResourceMissingError reports that no policy resource exists for a
// namespace. It matches fs.ErrNotExist.
type ResourceMissingError struct {
	// Namespace is the module whose policy was requested
	Namespace string

	// Path is the resource path that was opened
	Path string

	// Cause is the opener's error
	Cause error
}

// Error implements the error interface.
func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("policy resource %q for namespace %q not found", e.Path, e.Namespace)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ResourceMissingError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, fs.ErrNotExist) hold for any missing resource.
func (e *ResourceMissingError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// LoadError represents an I/O failure while reading a policy.
// This includes open and read errors and oversized input.
type LoadError struct {
	// FilePath is the resource path, or "<stream>" for caller-supplied readers
	FilePath string

	// Message describes the error
	Message string

	// Cause is the underlying error that caused this load error
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load policy %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load policy %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseError reports malformed policy content.
type ParseError struct {
	// FilePath is the resource path, or "<stream>" for caller-supplied readers
	FilePath string

	// Line is the line number where the error occurred (1-indexed, 0 if unknown)
	Line int

	// Message describes the parsing error
	Message string

	// Cause is the underlying parser error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %q at line %d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ErrorList collects the failures of a multi-module load.
type ErrorList struct {
	Errors []error
}

// Error implements the error interface.
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d policy load errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %v\n", i+1, err)
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *ErrorList) Unwrap() []error {
	return e.Errors
}

// Add appends err if it is non-nil.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was collected.
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns e if it holds errors and nil otherwise.
func (e *ErrorList) ErrorOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
