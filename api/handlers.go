/*
handlers.go - HTTP API handlers for the reward ledger

PURPOSE:
  Exposes the ledger service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to the service: role
  checks, invariants, and accounting all live there, never here.

ENDPOINTS:
  Caller-scoped:
    GET    /api/me/role             Resolved role
    GET    /api/me/admin            Admin convenience boolean
    GET    /api/me/profile          Own profile (404 until first save)
    PUT    /api/me/profile          Create/replace own profile
    GET    /api/me/balance          Running balance

  Tasks:
    GET    /api/tasks               Catalog, insertion order (?sort=reward)
    GET    /api/tasks/{id}          Single task
    POST   /api/tasks               Create task (admin)
    POST   /api/tasks/seed          Seed default catalog (admin)
    POST   /api/tasks/{id}/complete First-time completion payout

  Withdrawals:
    POST   /api/withdrawals         File a withdrawal request
    GET    /api/withdrawals         Full log (admin), ?mine=1 for own rows

  Admin:
    POST   /api/admin/roles         Assign a role
    GET    /api/users/{id}/profile  Any profile (admin, or self)

ERROR HANDLING:
  Domain errors map to HTTP status:
  - 400: invalid payloads, invalid role/amount/task values
  - 403: role insufficient (typed failure, never an empty list)
  - 404: missing task or absent profile
  - 409: duplicate task id, repeated completion
  - 422: insufficient balance
  - 500: storage faults (the only "maybe try again" class)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caffeinepub/banana-earn/auth"
	"github.com/caffeinepub/banana-earn/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
}

// NewHandler creates a new handler around the service façade.
func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{Service: svc}
}

// caller extracts the authenticated identity. The auth middleware
// guarantees it; a miss means a wiring bug, reported as 401.
func caller(w http.ResponseWriter, r *http.Request) (ledger.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required", nil)
	}
	return id, ok
}

// =============================================================================
// CALLER HANDLERS
// =============================================================================

// GetCallerRole returns the caller's resolved role.
func (h *Handler) GetCallerRole(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	role, err := h.Service.CallerRole(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to resolve role", err)
		return
	}
	writeJSON(w, http.StatusOK, RoleDTO{Role: string(role)})
}

// GetCallerAdmin returns whether the caller is an admin.
func (h *Handler) GetCallerAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	isAdmin, err := h.Service.IsAdmin(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to resolve role", err)
		return
	}
	writeJSON(w, http.StatusOK, AdminDTO{IsAdmin: isAdmin})
}

// GetCallerProfile returns the caller's own profile, 404 when never saved.
func (h *Handler) GetCallerProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	profile, err := h.Service.OwnProfile(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Profile not set up yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, ProfileDTO{Name: profile.Name, TasksCompleted: profile.TasksCompleted})
}

// SaveCallerProfile creates or replaces the caller's profile. Any
// tasks_completed in the payload is ignored; the counter is server state.
func (h *Handler) SaveCallerProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	if err := h.Service.SaveProfile(r.Context(), id, ledger.Profile{Name: req.Name}); err != nil {
		writeDomainError(w, "Failed to save profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUserProfile returns any identity's profile. Self always allowed;
// anyone else requires admin.
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	target := ledger.Identity(chi.URLParam(r, "id"))

	profile, err := h.Service.ProfileOf(r.Context(), id, target)
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Profile not set up yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, ProfileDTO{Name: profile.Name, TasksCompleted: profile.TasksCompleted})
}

// GetCallerBalance returns the caller's running total.
func (h *Handler) GetCallerBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	balance, err := h.Service.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load balance", err)
		return
	}
	value, _ := balance.Value.Float64()
	writeJSON(w, http.StatusOK, BalanceDTO{Balance: value})
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns the catalog. ?sort=reward orders by descending reward
// with a stable tie-break on insertion order.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []ledger.Task
		err   error
	)
	if r.URL.Query().Get("sort") == "reward" {
		tasks, err = h.Service.TasksByReward(r.Context())
	} else {
		tasks, err = h.Service.Tasks(r.Context())
	}
	if err != nil {
		writeDomainError(w, "Failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(tasks))
}

// GetTask returns a single task.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := ledger.TaskID(chi.URLParam(r, "id"))
	task, err := h.Service.TaskByID(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, "Failed to load task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// CreateTask adds a catalog task. Admin only.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	task := ledger.Task{
		ID:          ledger.TaskID(req.ID),
		Title:       req.Title,
		Description: req.Description,
		Reward:      ledger.NewAmount(req.Reward),
	}
	if err := h.Service.CreateTask(r.Context(), id, task); err != nil {
		writeDomainError(w, "Failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(task))
}

// SeedTasks inserts the default catalog. Admin only, idempotent.
func (h *Handler) SeedTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Service.SeedDefaultTasks(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to seed tasks", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask pays out a first-time completion.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	taskID := ledger.TaskID(chi.URLParam(r, "id"))
	if err := h.Service.CompleteTask(r.Context(), id, taskID); err != nil {
		writeDomainError(w, "Failed to complete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// WITHDRAWAL HANDLERS
// =============================================================================

// RequestWithdrawal validates and appends a withdrawal request.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.RequestWithdrawal(r.Context(), id, ledger.NewAmount(req.Amount)); err != nil {
		writeDomainError(w, "Failed to request withdrawal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWithdrawals returns the withdrawal log. The full log is admin-only;
// ?mine=1 returns the caller's own rows without a role requirement.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var (
		reqs []ledger.WithdrawalRequest
		err  error
	)
	if r.URL.Query().Get("mine") != "" {
		reqs, err = h.Service.OwnWithdrawals(r.Context(), id)
	} else {
		reqs, err = h.Service.Withdrawals(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, "Failed to list withdrawal requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTOs(reqs))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// AssignRole overwrites a target identity's role. Admin only.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "Identity is required", nil)
		return
	}
	role, err := ledger.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}
	if err := h.Service.AssignRole(r.Context(), id, ledger.Identity(req.Identity), role); err != nil {
		writeDomainError(w, "Failed to assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain failures to HTTP status codes. Business
// rejections keep their typed details; storage faults become opaque 500s.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrDuplicateTask), errors.Is(err, ledger.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}
