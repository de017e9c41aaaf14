// Package errors provides custom error types for the clinicsync client.
// These errors enable programmatic error checking across the transport,
// decoding, routing and configuration layers.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join are re-exported so callers only need one errors import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors for the clinicsync client
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConnected indicates that the transport has no open connection
	ErrNotConnected = errors.New("not connected")

	// ErrDisposed indicates the client has been disposed
	ErrDisposed = errors.New("client disposed")

	// ErrMalformedFrame indicates an inbound frame could not be parsed
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownKind indicates an inbound frame carried a kind outside the enumeration
	ErrUnknownKind = errors.New("unknown kind")

	// ErrRetriesExhausted indicates the reconnection policy gave up
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

	// ErrBufferFull indicates an outbound buffer could not accept more frames
	ErrBufferFull = errors.New("send buffer full")
)

// DecodeReason classifies why an inbound frame was rejected.
type DecodeReason string

const (
	// MalformedFrame means the frame was not parseable or its payload had the wrong shape.
	MalformedFrame DecodeReason = "malformed_frame"
	// UnknownKind means the kind is not part of the closed enumeration.
	UnknownKind DecodeReason = "unknown_kind"
)

// DecodeError represents a rejected inbound frame
type DecodeError struct {
	Reason  DecodeReason
	Kind    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("decode %s (kind %q): %s", e.Reason, e.Kind, e.Message)
	}
	return fmt.Sprintf("decode %s: %s", e.Reason, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *DecodeError) Is(target error) bool {
	switch e.Reason {
	case MalformedFrame:
		return target == ErrMalformedFrame
	case UnknownKind:
		return target == ErrUnknownKind
	}
	return false
}

// NewMalformedFrame creates a DecodeError for an unparseable frame
func NewMalformedFrame(kind, message string, err error) *DecodeError {
	return &DecodeError{Reason: MalformedFrame, Kind: kind, Message: message, Err: err}
}

// NewUnknownKind creates a DecodeError for a kind outside the enumeration
func NewUnknownKind(kind string) *DecodeError {
	return &DecodeError{Reason: UnknownKind, Kind: kind, Message: "kind is not registered"}
}

// NotFoundError represents an error when an entity is not found
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

// TransportError represents a failure of the underlying connection
type TransportError struct {
	Operation string // "dial", "read", "write", "close"
	Address   string
	Err       error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("transport %s %s: %v", e.Operation, e.Address, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError
func NewTransportError(operation, address string, err error) *TransportError {
	return &TransportError{Operation: operation, Address: address, Err: err}
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

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotConnected checks if a send was dropped for lack of a connection
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsDecodeError checks if an error came from the frame decoder
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapTransport wraps an error as a TransportError
func WrapTransport(operation, address string, err error) error {
	if err == nil {
		return nil
	}
	return NewTransportError(operation, address, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Message: err.Error(), Err: err}
}
