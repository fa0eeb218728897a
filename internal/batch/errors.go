package batch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors
var (
	// ErrUnknownQueue indicates an unrecognized backend type was requested
	ErrUnknownQueue = errors.New("unknown queue type")

	// ErrUnknownState indicates a native scheduler state with no canonical mapping
	ErrUnknownState = errors.New("unknown job state")

	// ErrNotConnected indicates the remote batch server could not be reached
	ErrNotConnected = errors.New("batch server not connected")

	// ErrNoRemoteURI indicates auto type resolution was requested without a remote endpoint
	ErrNoRemoteURI = errors.New("queue type auto requires a remote server URI")

	// ErrCommandFailed indicates a scheduler command exited nonzero
	ErrCommandFailed = errors.New("scheduler command failed")
)

// NewUnknownQueueError builds an ErrUnknownQueue naming the valid set.
func NewUnknownQueueError(qtype string) error {
	valid := make([]string, 0, len(definedSystems))
	for name := range definedSystems {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return fmt.Errorf("%w: %q, should be one of [%s]",
		ErrUnknownQueue, qtype, strings.Join(valid, " "))
}

// ParseError represents a contract violation in scheduler output, e.g. a row
// with an unexpected field count. These are fatal: they mean the backend's
// assumptions about the output format are stale.
type ParseError struct {
	Backend string // Backend name (e.g. "slurm")
	Command string // Command whose output failed to parse
	Content string // Offending content
	Reason  string // Reason for the failure
}

func (e *ParseError) Error() string {
	if e.Content != "" {
		return fmt.Sprintf("%s queue parsing error from %s: %s: %q",
			e.Backend, e.Command, e.Reason, e.Content)
	}
	return fmt.Sprintf("%s queue parsing error from %s: %s",
		e.Backend, e.Command, e.Reason)
}

// NewParseError creates a new ParseError.
func NewParseError(backend, command, reason, content string) *ParseError {
	return &ParseError{Backend: backend, Command: command, Reason: reason, Content: content}
}

// IsParseError checks if an error is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// NotImplementedError signals that a backend has not implemented a required
// contract method. It always indicates a programming defect.
type NotImplementedError struct {
	Backend string
	Method  string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s backend does not implement %s", e.Backend, e.Method)
}

// NewNotImplementedError creates a NotImplementedError.
func NewNotImplementedError(backend, method string) *NotImplementedError {
	return &NotImplementedError{Backend: backend, Method: method}
}

// CommandError wraps a scheduler command failure with its captured output.
type CommandError struct {
	Command string
	Code    int
	Stdout  string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code,
		strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCommandFailed
}
