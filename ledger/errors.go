/*
errors.go - Centralized failure taxonomy for the reward engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure here is deterministic and caller-correctable; none are
  transient, so nothing is retried internally. Storage faults are wrapped
  separately with %w so the boundary can tell "fix your request" apart
  from "the store broke".

ERROR CATEGORIES:
  1. Authorization - caller's role is insufficient
  2. Catalog - missing or duplicate tasks
  3. Accounting - double payout, bad withdrawal amounts

USAGE:
  if errors.Is(err, ledger.ErrAlreadyCompleted) { ... }

  var insuf *ledger.InsufficientBalanceError
  if errors.As(err, &insuf) { ... insuf.Available ... }

SEE ALSO:
  - service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when the caller's role does not permit
	// the requested operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTaskNotFound is returned when a referenced task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateTask is returned when creating a task whose id already
	// exists. Creation is not idempotent; re-creation is rejected, not merged.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrAlreadyCompleted is returned when an identity attempts a second
	// payout for the same task. This enforces the at-most-once invariant.
	ErrAlreadyCompleted = errors.New("task already completed")

	// ErrInvalidAmount is returned for withdrawal requests that are zero
	// or negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a withdrawal request exceeds
	// the balance at request time.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidRole is returned when a role value is not one of the
	// known roles.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidTask is returned when a task payload fails validation
	// (empty id, negative reward).
	ErrInvalidTask = errors.New("invalid task")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnauthorizedError reports which operation a caller was denied and the
// role it actually held.
type UnauthorizedError struct {
	Identity  Identity
	Role      Role
	Operation string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s requires admin, caller has role %q", e.Operation, e.Role)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// InsufficientBalanceError provides details about a withdrawal shortfall.
type InsufficientBalanceError struct {
	Identity  Identity
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v",
		e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// TaskNotFoundError identifies which task was missing.
type TaskNotFoundError struct {
	TaskID TaskID
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.TaskID)
}

func (e *TaskNotFoundError) Unwrap() error { return ErrTaskNotFound }

// InvalidRoleError reports an unknown role value.
type InvalidRoleError struct {
	Value string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q", e.Value)
}

func (e *InvalidRoleError) Unwrap() error { return ErrInvalidRole }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a business-rule rejection. These will never succeed on retry.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrDuplicateTask) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidTask)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}
