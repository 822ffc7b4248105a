package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeinepub/banana-earn/api"
	"github.com/caffeinepub/banana-earn/auth"
	"github.com/caffeinepub/banana-earn/ledger"
	"github.com/caffeinepub/banana-earn/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "test-secret"

func newTestServer(t *testing.T) (http.Handler, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	svc := ledger.NewService(mem)
	router := api.NewRouter(api.NewHandler(svc), testSecret, []string{"http://localhost:5173"})

	// One admin for privileged setup.
	require.NoError(t, mem.SetRole(context.Background(), "boss", ledger.RoleAdmin))
	return router, mem
}

func doJSON(t *testing.T, h http.Handler, method, path string, as ledger.Identity, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != "" {
		token, err := auth.SignToken(as, testSecret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_AnonymousRejected(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/me/role", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// ROLES
// =============================================================================

func TestAPI_CallerRoleAndAdminFlag(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/me/role", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", decode[api.RoleDTO](t, rec).Role)

	rec = doJSON(t, router, http.MethodGet, "/api/me/admin", "boss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[api.AdminDTO](t, rec).IsAdmin)
}

func TestAPI_AssignRole(t *testing.T) {
	router, _ := newTestServer(t)

	// Non-admin: 403 with a typed error, not an empty success.
	rec := doJSON(t, router, http.MethodPost, "/api/admin/roles", "alice",
		api.AssignRoleRequest{Identity: "bob", Role: "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin promotes bob.
	rec = doJSON(t, router, http.MethodPost, "/api/admin/roles", "boss",
		api.AssignRoleRequest{Identity: "bob", Role: "admin"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/me/admin", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[api.AdminDTO](t, rec).IsAdmin)

	// Unknown role value.
	rec = doJSON(t, router, http.MethodPost, "/api/admin/roles", "boss",
		api.AssignRoleRequest{Identity: "bob", Role: "superuser"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PROFILES
// =============================================================================

func TestAPI_ProfileLifecycle(t *testing.T) {
	router, _ := newTestServer(t)

	// Absent until first save: 404 drives first-run setup.
	rec := doJSON(t, router, http.MethodGet, "/api/me/profile", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/me/profile", "alice",
		api.SaveProfileRequest{Name: "Alice", TasksCompleted: 999})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/me/profile", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[api.ProfileDTO](t, rec)
	assert.Equal(t, "Alice", profile.Name)
	assert.EqualValues(t, 0, profile.TasksCompleted, "client-supplied counter ignored")
}

func TestAPI_ProfileOfOtherRequiresAdmin(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/me/profile", "bob",
		api.SaveProfileRequest{Name: "Bob"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/bob/profile", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/bob/profile", "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/bob/profile", "boss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", decode[api.ProfileDTO](t, rec).Name)
}

// =============================================================================
// TASKS
// =============================================================================

func TestAPI_TaskCreationAndListing(t *testing.T) {
	router, _ := newTestServer(t)

	// Non-admin cannot create.
	rec := doJSON(t, router, http.MethodPost, "/api/tasks", "alice",
		api.CreateTaskRequest{ID: "t1", Title: "One", Reward: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, req := range []api.CreateTaskRequest{
		{ID: "t1", Title: "One", Description: "first", Reward: 1},
		{ID: "t2", Title: "Two", Description: "second", Reward: 5},
		{ID: "t3", Title: "Three", Description: "third", Reward: 2.5},
	} {
		rec = doJSON(t, router, http.MethodPost, "/api/tasks", "boss", req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// Duplicate id: 409.
	rec = doJSON(t, router, http.MethodPost, "/api/tasks", "boss",
		api.CreateTaskRequest{ID: "t1", Title: "Again", Reward: 9})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Insertion order.
	rec = doJSON(t, router, http.MethodGet, "/api/tasks", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]api.TaskDTO](t, rec)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})

	// Reward-sorted view.
	rec = doJSON(t, router, http.MethodGet, "/api/tasks?sort=reward", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks = decode[[]api.TaskDTO](t, rec)
	assert.Equal(t, []string{"t2", "t3", "t1"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})

	// Single task and missing task.
	rec = doJSON(t, router, http.MethodGet, "/api/tasks/t2", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, decode[api.TaskDTO](t, rec).Reward)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/nope", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SeedTasks(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks/seed", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/tasks/seed", "boss", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/tasks/seed", "boss", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.TaskDTO](t, rec), ledger.DefaultTaskCount())
}

func TestAPI_CompleteTaskPayout(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", "boss",
		api.CreateTaskRequest{ID: "t1", Title: "One", Reward: 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/tasks/t1/complete", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Second completion: 409, no second payout.
	rec = doJSON(t, router, http.MethodPost, "/api/tasks/t1/complete", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/me/balance", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, decode[api.BalanceDTO](t, rec).Balance)

	// Missing task.
	rec = doJSON(t, router, http.MethodPost, "/api/tasks/nope/complete", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

func TestAPI_WithdrawalFlow(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", "boss",
		api.CreateTaskRequest{ID: "t1", Title: "One", Reward: 5})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/tasks/t1/complete", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Invalid and oversized amounts.
	rec = doJSON(t, router, http.MethodPost, "/api/withdrawals", "alice", api.WithdrawRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/withdrawals", "alice", api.WithdrawRequest{Amount: 5.01})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// A valid request.
	rec = doJSON(t, router, http.MethodPost, "/api/withdrawals", "alice", api.WithdrawRequest{Amount: 5})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Full log is admin-only; the service returns a typed failure, the
	// client-side empty-list fallback is not this layer's business.
	rec = doJSON(t, router, http.MethodGet, "/api/withdrawals", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Own rows need no role.
	rec = doJSON(t, router, http.MethodGet, "/api/withdrawals?mine=1", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]api.WithdrawalDTO](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].Identity)
	assert.Equal(t, 5.0, mine[0].Amount)
	assert.NotEmpty(t, mine[0].ID)

	// Admin sees everything.
	rec = doJSON(t, router, http.MethodGet, "/api/withdrawals", "boss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.WithdrawalDTO](t, rec), 1)
}
