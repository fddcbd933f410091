// Package errors provides the error taxonomy for the ordersync engine.
// Fetch-time failures are fatal to a sync cycle; store failures abort the
// cycle before any partial write. Callers classify errors with errors.Is
// against the sentinels below or errors.As against the typed errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As re-export the standard library helpers so callers need a
// single errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Sentinel errors for the ordersync system
var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates the upstream carrier could not be reached
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUpstreamRejected indicates the upstream answered with a failure status
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrUnauthorized indicates the upstream refused our credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse indicates a 2xx response with an unrecognized envelope
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrConflict indicates an optimistic concurrency check failed
	ErrConflict = errors.New("version conflict")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// UpstreamError is returned when the carrier answers with a failure.
// A non-2xx status and an explicit {"success": false} envelope both
// produce one.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("upstream rejected %s (status %d): %s", e.Endpoint, e.StatusCode, body)
}

// Is implements errors.Is support
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamRejected:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(endpoint string, statusCode int, body string) *UpstreamError {
	return &UpstreamError{Endpoint: endpoint, StatusCode: statusCode, Body: body}
}

// UnavailableError wraps a transport failure reaching the upstream.
type UnavailableError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Endpoint, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// MalformedResponseError describes a successful response we could not interpret.
type MalformedResponseError struct {
	Endpoint string
	Message  string
	Err      error
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// NewMalformedResponseError creates a new MalformedResponseError
func NewMalformedResponseError(endpoint, message string, err error) *MalformedResponseError {
	return &MalformedResponseError{Endpoint: endpoint, Message: message, Err: err}
}

// ConflictError reports a stale row version on write.
type ConflictError struct {
	ID       int64
	Expected int64
	Actual   int64
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("record %d changed concurrently (expected version %d, found %d)", e.ID, e.Expected, e.Actual)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(id, expected, actual int64) *ConflictError {
	return &ConflictError{ID: id, Expected: expected, Actual: actual}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// SyncError represents a failed sync cycle
type SyncError struct {
	CycleID string
	Stage   string // "fetch", "load", "merge", "write", "enhance"
	Err     error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.CycleID != "" {
		return fmt.Sprintf("sync cycle %s failed during %s: %v", e.CycleID, e.Stage, e.Err)
	}
	return fmt.Sprintf("sync failed during %s: %v", e.Stage, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(cycleID, stage string, err error) *SyncError {
	return &SyncError{
		CycleID: cycleID,
		Stage:   stage,
		Err:     err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "load", "replace", "archive", "update"
	Resource  string // "records", "payload", "catalog"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Message:   message,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable checks if the upstream could not be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsUpstreamRejected checks if the upstream answered with a failure
func IsUpstreamRejected(err error) bool {
	return errors.Is(err, ErrUpstreamRejected)
}

// IsMalformedResponse checks if the upstream body could not be interpreted
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsConflict checks if an error is an optimistic concurrency failure
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsFetchError reports whether err is one of the fetch-time failures that
// abort a cycle.
func IsFetchError(err error) bool {
	return IsUnavailable(err) || IsTimeout(err) || IsUpstreamRejected(err) || IsMalformedResponse(err)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapUnavailable wraps a transport error as an UnavailableError
func WrapUnavailable(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Endpoint: endpoint, Err: err}
}
