/*
Package sqlite provides the SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Production persistence for roles, profiles, the task catalog, completion
  markers, balances, and the withdrawal log. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INVARIANTS ENFORCED IN THE SCHEMA:
  - completions PRIMARY KEY (identity, task_id): the at-most-once payout
    marker. A second insert for the same pair violates the key, which the
    store maps to ledger.ErrAlreadyCompleted. This makes the completion
    test-and-set a single atomic statement.
  - tasks PRIMARY KEY (id): duplicate task creation maps to
    ledger.ErrDuplicateTask.
  - withdrawal_requests: insert-only; no UPDATE or DELETE statements exist
    for it anywhere in this package.

AMOUNTS:
  Rewards and balances are stored as decimal TEXT and parsed through
  shopspring/decimal. No floating point touches money.

CONCURRENCY:
  Uses sync.RWMutex for write serialization on top of WAL mode. WithTx holds
  the write lock for the whole transaction, so multi-store compositions
  (payouts, withdrawal validation) are serializable.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/banana-earn.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  svc := ledger.NewService(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caffeinepub/banana-earn/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent (each pool
	// connection would otherwise see its own empty database) and matches
	// the single-writer discipline the mutex enforces anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Role assignments. Absent rows mean "use the configured default role".
	CREATE TABLE IF NOT EXISTS roles (
		identity TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Profiles hold only the display name. The completion counter is
	-- derived from the completions table so a profile save can never
	-- overwrite it.
	CREATE TABLE IF NOT EXISTS profiles (
		identity TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Task catalog. Immutable once created; rowid preserves insertion order.
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		reward TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: the completion marker. The primary key is the at-most-once
	-- payout invariant; a second completion of the same pair fails the key.
	CREATE TABLE IF NOT EXISTS completions (
		identity TEXT NOT NULL,
		task_id TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (identity, task_id)
	);

	CREATE INDEX IF NOT EXISTS idx_completions_identity
		ON completions(identity);

	-- Running balances, one row per identity that ever earned.
	CREATE TABLE IF NOT EXISTS balances (
		identity TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Withdrawal log (append-only). rowid preserves append order.
	CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id TEXT PRIMARY KEY,
		identity TEXT NOT NULL,
		amount TEXT NOT NULL,
		requested_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_identity
		ON withdrawal_requests(identity);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// view implements ledger.Store over either the root connection or an open
// transaction. It does no locking; the Store wrappers below own that.
type view struct {
	db dbtx
}

// =============================================================================
// ROLE STORE
// =============================================================================

func (v view) GetRole(ctx context.Context, id ledger.Identity) (ledger.Role, bool, error) {
	var role string
	err := v.db.QueryRowContext(ctx,
		`SELECT role FROM roles WHERE identity = ?`, string(id)).Scan(&role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get role: %w", err)
	}
	return ledger.Role(role), true, nil
}

func (v view) SetRole(ctx context.Context, id ledger.Identity, role ledger.Role) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO roles (identity, role, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		string(id), string(role), nowRFC3339())
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

// =============================================================================
// PROFILE STORE
// =============================================================================

func (v view) GetProfileName(ctx context.Context, id ledger.Identity) (string, bool, error) {
	var name string
	err := v.db.QueryRowContext(ctx,
		`SELECT name FROM profiles WHERE identity = ?`, string(id)).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get profile: %w", err)
	}
	return name, true, nil
}

func (v view) PutProfileName(ctx context.Context, id ledger.Identity, name string) error {
	now := nowRFC3339()
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO profiles (identity, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		string(id), name, now, now)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// =============================================================================
// TASK CATALOG
// =============================================================================

func (v view) InsertTask(ctx context.Context, task ledger.Task) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, reward, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(task.ID), task.Title, task.Description, task.Reward.String(), nowRFC3339())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateTask
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (v view) GetTask(ctx context.Context, id ledger.TaskID) (*ledger.Task, error) {
	row := v.db.QueryRowContext(ctx,
		`SELECT id, title, description, reward FROM tasks WHERE id = ?`, string(id))

	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (v view) ListTasks(ctx context.Context) ([]ledger.Task, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT id, title, description, reward FROM tasks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []ledger.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(scan func(...any) error) (*ledger.Task, error) {
	var id, title, description, reward string
	if err := scan(&id, &title, &description, &reward); err != nil {
		return nil, err
	}
	amount, err := ledger.NewAmountFromString(reward)
	if err != nil {
		return nil, fmt.Errorf("corrupt reward %q: %w", reward, err)
	}
	return &ledger.Task{
		ID:          ledger.TaskID(id),
		Title:       title,
		Description: description,
		Reward:      amount,
	}, nil
}

// =============================================================================
// COMPLETION LEDGER
// =============================================================================

// MarkCompleted inserts the completion marker. The primary key makes this a
// single atomic test-and-set; the duplicate-key error is the "already
// completed" signal.
func (v view) MarkCompleted(ctx context.Context, id ledger.Identity, taskID ledger.TaskID) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO completions (identity, task_id, completed_at) VALUES (?, ?, ?)`,
		string(id), string(taskID), nowRFC3339())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to mark completion: %w", err)
	}
	return nil
}

func (v view) CountCompleted(ctx context.Context, id ledger.Identity) (int64, error) {
	var n int64
	err := v.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completions WHERE identity = ?`, string(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return n, nil
}

// =============================================================================
// BALANCE LEDGER
// =============================================================================

func (v view) GetBalance(ctx context.Context, id ledger.Identity) (ledger.Amount, error) {
	var amount string
	err := v.db.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE identity = ?`, string(id)).Scan(&amount)
	if err == sql.ErrNoRows {
		return ledger.ZeroAmount(), nil
	}
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("failed to get balance: %w", err)
	}
	parsed, err := ledger.NewAmountFromString(amount)
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("corrupt balance %q: %w", amount, err)
	}
	return parsed, nil
}

func (v view) AddBalance(ctx context.Context, id ledger.Identity, amount ledger.Amount) error {
	if amount.IsNegative() {
		return ledger.ErrInvalidAmount
	}
	current, err := v.GetBalance(ctx, id)
	if err != nil {
		return err
	}
	next := current.Add(amount)
	_, err = v.db.ExecContext(ctx, `
		INSERT INTO balances (identity, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		string(id), next.String(), nowRFC3339())
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

// =============================================================================
// WITHDRAWAL LOG
// =============================================================================

func (v view) AppendWithdrawal(ctx context.Context, req ledger.WithdrawalRequest) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, identity, amount, requested_at)
		VALUES (?, ?, ?, ?)`,
		req.ID, string(req.Identity), req.Amount.String(), req.RequestedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append withdrawal request: %w", err)
	}
	return nil
}

func (v view) ListWithdrawals(ctx context.Context) ([]ledger.WithdrawalRequest, error) {
	return v.listWithdrawals(ctx,
		`SELECT id, identity, amount, requested_at FROM withdrawal_requests ORDER BY rowid`)
}

func (v view) ListWithdrawalsFor(ctx context.Context, id ledger.Identity) ([]ledger.WithdrawalRequest, error) {
	return v.listWithdrawals(ctx,
		`SELECT id, identity, amount, requested_at FROM withdrawal_requests WHERE identity = ? ORDER BY rowid`,
		string(id))
}

func (v view) listWithdrawals(ctx context.Context, query string, args ...any) ([]ledger.WithdrawalRequest, error) {
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var result []ledger.WithdrawalRequest
	for rows.Next() {
		var id, identity, amount, requestedAt string
		if err := rows.Scan(&id, &identity, &amount, &requestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		parsed, err := ledger.NewAmountFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		at, err := time.Parse(time.RFC3339, requestedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp %q: %w", requestedAt, err)
		}
		result = append(result, ledger.WithdrawalRequest{
			ID:          id,
			Identity:    ledger.Identity(identity),
			Amount:      parsed,
			RequestedAt: at,
		})
	}
	return result, rows.Err()
}

// =============================================================================
// STORE WRAPPERS - lock discipline over the view
// =============================================================================

func (s *Store) GetRole(ctx context.Context, id ledger.Identity) (ledger.Role, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.GetRole(ctx, id)
}

func (s *Store) SetRole(ctx context.Context, id ledger.Identity, role ledger.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.db}.SetRole(ctx, id, role)
}

func (s *Store) GetProfileName(ctx context.Context, id ledger.Identity) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.GetProfileName(ctx, id)
}

func (s *Store) PutProfileName(ctx context.Context, id ledger.Identity, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.db}.PutProfileName(ctx, id, name)
}

func (s *Store) InsertTask(ctx context.Context, task ledger.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.db}.InsertTask(ctx, task)
}

func (s *Store) GetTask(ctx context.Context, id ledger.TaskID) (*ledger.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.GetTask(ctx, id)
}

func (s *Store) ListTasks(ctx context.Context) ([]ledger.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.ListTasks(ctx)
}

func (s *Store) MarkCompleted(ctx context.Context, id ledger.Identity, taskID ledger.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.db}.MarkCompleted(ctx, id, taskID)
}

func (s *Store) CountCompleted(ctx context.Context, id ledger.Identity) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.CountCompleted(ctx, id)
}

func (s *Store) GetBalance(ctx context.Context, id ledger.Identity) (ledger.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.GetBalance(ctx, id)
}

func (s *Store) AddBalance(ctx context.Context, id ledger.Identity, amount ledger.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.db}.AddBalance(ctx, id, amount)
}

func (s *Store) AppendWithdrawal(ctx context.Context, req ledger.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.db}.AppendWithdrawal(ctx, req)
}

func (s *Store) ListWithdrawals(ctx context.Context) ([]ledger.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.ListWithdrawals(ctx)
}

func (s *Store) ListWithdrawalsFor(ctx context.Context, id ledger.Identity) ([]ledger.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s.db}.ListWithdrawalsFor(ctx, id)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The write lock is held
// for the whole transaction, so compositions are serializable with respect
// to every other write.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(view{sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
