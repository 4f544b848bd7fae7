package service

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when the target entity does not exist.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// InvalidStateError is returned when a caller-initiated transition is illegal from the current state.
type InvalidStateError struct {
	Entity  string
	ID      int64
	Action  string
	Current string
	Allowed []string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %d in status %s", e.Action, e.Entity, e.ID, e.Current)
	if len(e.Allowed) > 0 {
		msg += "; allowed only from: " + strings.Join(e.Allowed, ", ")
	}
	return msg
}

// ConflictError is returned on uniqueness violations.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ExternalGatewayError wraps a failed or malformed payment gateway call.
type ExternalGatewayError struct {
	Gateway string
	Err     error
}

func (e *ExternalGatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Gateway, e.Err)
}

func (e *ExternalGatewayError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when input breaks a precondition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PermissionError is returned when the actor may not perform the operation.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

func statusNames[S ~string](statuses []S) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}
