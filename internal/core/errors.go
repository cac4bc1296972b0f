// Package core holds the shared error vocabulary, validation helpers, and
// lightweight service-description primitives used across the engine.
package core

import (
	"errors"
	"fmt"
)

// Error kinds. These are sentinel values tested with errors.Is; component
// packages wrap them with context-carrying struct types below.
var (
	ErrMissingTenantContext          = errors.New("missing tenant context")
	ErrTenantSuspended                = errors.New("tenant suspended")
	ErrTenantSchemaInitializationFailed = errors.New("tenant schema initialization failed")
	ErrProcessorNotRegistered         = errors.New("processor not registered")
	ErrProcessorExecutionFailure      = errors.New("processor execution failure")
	ErrOutputValidationFailure        = errors.New("output validation failure")
	ErrCredentialNotFound             = errors.New("credential not found")
	ErrStateTransitionRejected        = errors.New("state transition rejected")
	ErrImporterValidationError        = errors.New("importer validation error")
)

// TenantSuspendedError carries the offending tenant for audit logging.
type TenantSuspendedError struct {
	TenantID string
}

func (e *TenantSuspendedError) Error() string {
	return fmt.Sprintf("tenant %s is suspended", e.TenantID)
}

func (e *TenantSuspendedError) Unwrap() error { return ErrTenantSuspended }

// SchemaInitError wraps a migration failure with the tenant it was applied to.
type SchemaInitError struct {
	TenantID string
	Err      error
}

func (e *SchemaInitError) Error() string {
	return fmt.Sprintf("tenant %s schema initialization failed: %v", e.TenantID, e.Err)
}

func (e *SchemaInitError) Unwrap() error { return ErrTenantSchemaInitializationFailed }

// ProcessorNotRegisteredError names the unresolved step type.
type ProcessorNotRegisteredError struct {
	Type string
}

func (e *ProcessorNotRegisteredError) Error() string {
	return fmt.Sprintf("processor %q is not registered", e.Type)
}

func (e *ProcessorNotRegisteredError) Unwrap() error { return ErrProcessorNotRegistered }

// ProcessorExecutionError wraps a processor-reported failure.
type ProcessorExecutionError struct {
	Kind      string
	Message   string
	Retriable bool
}

func (e *ProcessorExecutionError) Error() string {
	return fmt.Sprintf("processor execution failed (%s): %s", e.Kind, e.Message)
}

func (e *ProcessorExecutionError) Unwrap() error { return ErrProcessorExecutionFailure }

// OutputValidationError reports a failed output validation: the orchestrator
// sets Path to the step id and lists the failing schema paths in Message.
type OutputValidationError struct {
	Path    string
	Message string
}

func (e *OutputValidationError) Error() string {
	return fmt.Sprintf("output validation failed at %s: %s", e.Path, e.Message)
}

func (e *OutputValidationError) Unwrap() error { return ErrOutputValidationFailure }

// CredentialNotFoundError names the key that could not be resolved.
type CredentialNotFoundError struct {
	Key string
}

func (e *CredentialNotFoundError) Error() string {
	return fmt.Sprintf("credential %q not found in any scope", e.Key)
}

func (e *CredentialNotFoundError) Unwrap() error { return ErrCredentialNotFound }

// StateTransitionRejectedError names the illegal (from, to) pair.
type StateTransitionRejectedError struct {
	Machine  string
	From, To string
}

func (e *StateTransitionRejectedError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Machine, e.From, e.To)
}

func (e *StateTransitionRejectedError) Unwrap() error { return ErrStateTransitionRejected }

// ImporterValidationErr carries a field-level detail for the campaign importer.
type ImporterValidationErr struct {
	Field  string
	Reason string
}

func (e *ImporterValidationErr) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ImporterValidationErr) Unwrap() error { return ErrImporterValidationError }

// IsRetriable reports whether err should trigger a retry under the job's
// retry policy. Only ProcessorExecutionError with Retriable=true qualifies;
// every other kind is treated as terminal.
func IsRetriable(err error) bool {
	var pe *ProcessorExecutionError
	if errors.As(err, &pe) {
		return pe.Retriable
	}
	return false
}
