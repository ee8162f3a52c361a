// Package errors provides centralized error definitions and error handling
// utilities for pairview. It defines sentinel errors, domain error types
// with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors:
//   - PeerError: spawning, focusing or messaging a viewer peer
//   - UpstreamError: failures of the prompt-assembly upstream
//
// Semantic errors:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Classification
//
// Most conditions in pairview are not faults. Malformed uploads and
// untrusted frames are dropped silently by their owners; only upstream
// failures are user facing. Use [IsUserFacing] to decide what to surface.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Peer and channel sentinel errors
var (
	// ErrNotListening indicates the peer has no open channel; the frame was dropped.
	ErrNotListening = New("peer not listening")
	// ErrSpawnFailed indicates a viewer process could not be started.
	ErrSpawnFailed = New("failed to spawn peer")
	// ErrNameCollision indicates two document types map to one peer name.
	ErrNameCollision = New("peer name collision")
)

// Protocol sentinel errors
var (
	// ErrUntrustedOrigin indicates a frame carried a foreign origin tag.
	ErrUntrustedOrigin = New("untrusted origin")
	// ErrUnknownKind indicates a frame carried a kind outside the protocol.
	ErrUnknownKind = New("unknown message kind")
)

// Coordination sentinel errors
var (
	// ErrPairNotFound indicates no pair with the requested base exists.
	ErrPairNotFound = New("pair not found")
	// ErrFieldNotFound indicates no field with the requested key exists.
	ErrFieldNotFound = New("field not found")
	// ErrNoSelection indicates an operation requires a selected pair.
	ErrNoSelection = New("no pair selected")
	// ErrNoGeometry indicates a field cannot be highlighted.
	ErrNoGeometry = New("field has no geometry")
)

// General sentinel errors
var (
	// ErrUpstream indicates the prompt-assembly upstream failed.
	ErrUpstream = New("upstream failure")
	// ErrInvalidInput indicates invalid user input.
	ErrInvalidInput = New("invalid input")
	// ErrNotFound indicates a generic resource was not found.
	ErrNotFound = New("not found")
)

// PairviewError is the base interface for all pairview errors.
type PairviewError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// PeerError represents errors related to viewer peers.
//
// Example:
//
//	err := errors.NewPeerError("spawn failed", errors.ErrSpawnFailed).
//		WithPeer("pairview-viewer-invoice").WithDocType("invoice")
type PeerError struct {
	baseError
	PeerName string
	DocType  string
}

// NewPeerError creates a new PeerError.
func NewPeerError(message string, cause error) *PeerError {
	return &PeerError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithPeer adds the peer name to the error context.
func (e *PeerError) WithPeer(name string) *PeerError {
	e.PeerName = name
	return e
}

// WithDocType adds the document type to the error context.
func (e *PeerError) WithDocType(docType string) *PeerError {
	e.DocType = docType
	return e
}

// Error returns the formatted error message.
func (e *PeerError) Error() string {
	var parts []string
	if e.PeerName != "" {
		parts = append(parts, fmt.Sprintf("peer=%s", e.PeerName))
	}
	if e.DocType != "" {
		parts = append(parts, fmt.Sprintf("doc_type=%s", e.DocType))
	}
	return formatWithContext("peer error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PeerError) Is(target error) bool {
	if _, ok := target.(*PeerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// UpstreamError represents a failure of the prompt-assembly upstream.
// Its message is safe to return to API callers.
type UpstreamError struct {
	baseError
	StatusCode int
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(message string, cause error) *UpstreamError {
	return &UpstreamError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithStatus records the upstream HTTP status.
func (e *UpstreamError) WithStatus(code int) *UpstreamError {
	e.StatusCode = code
	return e
}

// Error returns the formatted error message.
func (e *UpstreamError) Error() string {
	var parts []string
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return formatWithContext("upstream error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *UpstreamError) Is(target error) bool {
	if _, ok := target.(*UpstreamError); ok {
		return true
	}
	if errors.Is(target, ErrUpstream) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found", resourceType),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
	}
	return fmt.Sprintf("%s not found", e.ResourceType)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds the field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

func formatWithContext(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var pErr PairviewError
	if As(err, &pErr) {
		return pErr.IsUserFacing()
	}
	return false
}

// IsDropped reports whether err describes a message that was discarded by
// design (peer not listening, foreign origin, unknown kind) rather than a
// failure worth reporting.
func IsDropped(err error) bool {
	return Is(err, ErrNotListening) || Is(err, ErrUntrustedOrigin) || Is(err, ErrUnknownKind)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
