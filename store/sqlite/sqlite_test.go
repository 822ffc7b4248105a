package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caffeinepub/banana-earn/ledger"
	"github.com/caffeinepub/banana-earn/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func task(id string, reward float64) ledger.Task {
	return ledger.Task{
		ID:          ledger.TaskID(id),
		Title:       "Task " + id,
		Description: "Description of " + id,
		Reward:      ledger.NewAmount(reward),
	}
}

// =============================================================================
// ROLE STORE
// =============================================================================

func TestStore_Roles_AbsentThenRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetRole(ctx, "id-1")
	require.NoError(t, err)
	assert.False(t, ok, "unseen identity has no stored role")

	require.NoError(t, store.SetRole(ctx, "id-1", ledger.RoleAdmin))

	role, ok, err := store.GetRole(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ledger.RoleAdmin, role)

	// Overwrite.
	require.NoError(t, store.SetRole(ctx, "id-1", ledger.RoleGuest))
	role, _, err = store.GetRole(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleGuest, role)
}

// =============================================================================
// PROFILE STORE
// =============================================================================

func TestStore_Profiles_AbsentThenCreateThenReplace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetProfileName(ctx, "id-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutProfileName(ctx, "id-1", "Alice"))
	name, ok, err := store.GetProfileName(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)

	require.NoError(t, store.PutProfileName(ctx, "id-1", "Alice B."))
	name, _, err = store.GetProfileName(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", name)
}

// =============================================================================
// TASK CATALOG
// =============================================================================

func TestStore_Tasks_DuplicateIDRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTask(ctx, task("t1", 5)))
	err := store.InsertTask(ctx, task("t1", 7))
	assert.ErrorIs(t, err, ledger.ErrDuplicateTask)
}

func TestStore_Tasks_RoundtripPreservesDecimalReward(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTask(ctx, task("t1", 0.75)))

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Reward.Equal(ledger.NewAmount(0.75)), "got %v", got.Reward)
	assert.Equal(t, "Task t1", got.Title)
}

func TestStore_Tasks_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetTask(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Tasks_ListInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.InsertTask(ctx, task(id, 1)))
	}

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, ledger.TaskID("c"), tasks[0].ID)
	assert.Equal(t, ledger.TaskID("a"), tasks[1].ID)
	assert.Equal(t, ledger.TaskID("b"), tasks[2].ID)
}

// =============================================================================
// COMPLETION LEDGER
// =============================================================================

func TestStore_Completions_MarkIsTestAndSet(t *testing.T) {
	// The primary key is the invariant: second mark for the same pair fails.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkCompleted(ctx, "id-1", "t1"))

	err := store.MarkCompleted(ctx, "id-1", "t1")
	assert.ErrorIs(t, err, ledger.ErrAlreadyCompleted)

	// Other pairs are independent.
	assert.NoError(t, store.MarkCompleted(ctx, "id-1", "t2"))
	assert.NoError(t, store.MarkCompleted(ctx, "id-2", "t1"))

	n, err := store.CountCompleted(ctx, "id-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

// =============================================================================
// BALANCE LEDGER
// =============================================================================

func TestStore_Balances_DefaultZeroAndAccumulate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	balance, err := store.GetBalance(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	require.NoError(t, store.AddBalance(ctx, "id-1", ledger.NewAmount(5)))
	require.NoError(t, store.AddBalance(ctx, "id-1", ledger.NewAmount(2.5)))

	balance, err = store.GetBalance(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.NewAmount(7.5)), "got %v", balance)
}

func TestStore_Balances_NegativeCreditRejected(t *testing.T) {
	store := newTestStore(t)

	err := store.AddBalance(context.Background(), "id-1", ledger.NewAmount(-1))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// WITHDRAWAL LOG
// =============================================================================

func TestStore_Withdrawals_AppendOrderAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	reqs := []ledger.WithdrawalRequest{
		{ID: "wd-1", Identity: "id-1", Amount: ledger.NewAmount(1), RequestedAt: at},
		{ID: "wd-2", Identity: "id-2", Amount: ledger.NewAmount(2), RequestedAt: at},
		{ID: "wd-3", Identity: "id-1", Amount: ledger.NewAmount(3), RequestedAt: at},
	}
	for _, req := range reqs {
		require.NoError(t, store.AppendWithdrawal(ctx, req))
	}

	all, err := store.ListWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "wd-1", all[0].ID)
	assert.Equal(t, "wd-2", all[1].ID)
	assert.Equal(t, "wd-3", all[2].ID)
	assert.Equal(t, at, all[0].RequestedAt)

	mine, err := store.ListWithdrawalsFor(ctx, "id-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "wd-1", mine[0].ID)
	assert.Equal(t, "wd-3", mine[1].ID)
	assert.True(t, mine[1].Amount.Equal(ledger.NewAmount(3)))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollbackLeavesNoPartialState(t *testing.T) {
	// GIVEN: A transaction that marks a completion, credits a balance, then fails
	// WHEN: WithTx rolls back
	// THEN: Neither the marker nor the credit is visible

	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.MarkCompleted(ctx, "id-1", "t1"); err != nil {
			return err
		}
		if err := tx.AddBalance(ctx, "id-1", ledger.NewAmount(5)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Marker gone: marking again succeeds.
	assert.NoError(t, store.MarkCompleted(ctx, "id-1", "t1"))

	// Credit gone.
	balance, err := store.GetBalance(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "got %v", balance)
}

func TestStore_WithTx_CommitPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.MarkCompleted(ctx, "id-1", "t1"); err != nil {
			return err
		}
		return tx.AddBalance(ctx, "id-1", ledger.NewAmount(5))
	})
	require.NoError(t, err)

	err = store.MarkCompleted(ctx, "id-1", "t1")
	assert.ErrorIs(t, err, ledger.ErrAlreadyCompleted)

	balance, err := store.GetBalance(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.NewAmount(5)))
}

// =============================================================================
// SERVICE OVER SQLITE (integration)
// =============================================================================

func TestService_OverSQLite_CompletePayoutOnce(t *testing.T) {
	store := newTestStore(t)
	svc := ledger.NewService(store)
	ctx := context.Background()

	require.NoError(t, store.SetRole(ctx, "boss", ledger.RoleAdmin))
	require.NoError(t, svc.CreateTask(ctx, "boss", task("t1", 5)))

	require.NoError(t, svc.CompleteTask(ctx, "worker", "t1"))
	err := svc.CompleteTask(ctx, "worker", "t1")
	assert.ErrorIs(t, err, ledger.ErrAlreadyCompleted)

	balance, err := svc.Balance(ctx, "worker")
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.NewAmount(5)))
}

func TestService_OverSQLite_SeedIdempotent(t *testing.T) {
	store := newTestStore(t)
	svc := ledger.NewService(store)
	ctx := context.Background()

	require.NoError(t, store.SetRole(ctx, "boss", ledger.RoleAdmin))
	require.NoError(t, svc.SeedDefaultTasks(ctx, "boss"))
	require.NoError(t, svc.SeedDefaultTasks(ctx, "boss"))

	tasks, err := svc.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, ledger.DefaultTaskCount())
}
