/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS ON THE WIRE:
  Rewards, balances, and withdrawal amounts are JSON numbers, converted
  from decimal at the boundary only. Internally everything stays decimal.

VALIDATION:
  Validation is done in handlers and the service, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/caffeinepub/banana-earn/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RoleDTO is the caller's resolved role.
type RoleDTO struct {
	Role string `json:"role"`
}

// AdminDTO answers the isCallerAdmin convenience query.
type AdminDTO struct {
	IsAdmin bool `json:"is_admin"`
}

// AssignRoleRequest reassigns a target identity's role.
type AssignRoleRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// ProfileDTO represents a profile in API responses. TasksCompleted is
// server-derived; its presence in SaveProfileRequest is accepted for
// contract compatibility but never stored.
type ProfileDTO struct {
	Name           string `json:"name"`
	TasksCompleted int64  `json:"tasks_completed"`
}

// SaveProfileRequest is the full-profile payload of saveCallerUserProfile.
type SaveProfileRequest struct {
	Name           string `json:"name"`
	TasksCompleted int64  `json:"tasks_completed,omitempty"`
}

// TaskDTO represents a catalog task in API responses.
type TaskDTO struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Reward      float64 `json:"reward"`
}

// CreateTaskRequest is the request to create a task.
type CreateTaskRequest struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Reward      float64 `json:"reward"`
}

// BalanceDTO is the caller's running balance.
type BalanceDTO struct {
	Balance float64 `json:"balance"`
}

// WithdrawRequest files a withdrawal request for the caller.
type WithdrawRequest struct {
	Amount float64 `json:"amount"`
}

// WithdrawalDTO represents one entry of the withdrawal log.
type WithdrawalDTO struct {
	ID          string  `json:"id"`
	Identity    string  `json:"identity"`
	Amount      float64 `json:"amount"`
	RequestedAt string  `json:"requested_at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toTaskDTO(t ledger.Task) TaskDTO {
	reward, _ := t.Reward.Value.Float64()
	return TaskDTO{
		ID:          string(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Reward:      reward,
	}
}

func toTaskDTOs(tasks []ledger.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t)
	}
	return dtos
}

func toWithdrawalDTOs(reqs []ledger.WithdrawalRequest) []WithdrawalDTO {
	dtos := make([]WithdrawalDTO, len(reqs))
	for i, r := range reqs {
		amount, _ := r.Amount.Value.Float64()
		dtos[i] = WithdrawalDTO{
			ID:          r.ID,
			Identity:    string(r.Identity),
			Amount:      amount,
			RequestedAt: r.RequestedAt.UTC().Format(time.RFC3339),
		}
	}
	return dtos
}
