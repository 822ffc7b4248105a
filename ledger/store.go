/*
store.go - Persistence interface for the reward engine

PURPOSE:
  Defines the interface between the domain logic and the database. Each
  logical store (roles, profiles, tasks, completions, balances, withdrawal
  log) is a small method set on one Store; the Service composes multi-store
  transactions through TxStore.

APPEND-ONLY CONTRACTS:
  - Tasks: insert and read only; no Update or Delete methods exist.
  - Completions: MarkCompleted is the only write, and it is an atomic
    test-and-set. A second mark for the same (identity, task) fails with
    ErrAlreadyCompleted instead of overwriting.
  - Withdrawal log: AppendWithdrawal only. Entries are never edited.

ATOMIC COMPOSITION:
  WithTx() gives the Service all-or-nothing semantics across stores. A task
  payout writes the completion marker and the balance credit in one
  transaction: either both land or neither does.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - ledger/store: In-memory store for tests and dev

SEE ALSO:
  - service.go: The only consumer of these interfaces
  - store/sqlite/sqlite.go: Concrete implementation
*/
package ledger

import "context"

// =============================================================================
// STORE - Keyed persistence, one method set per logical store
// =============================================================================

// Store is the persistence surface of the engine. Implementations must make
// each individual method atomic; the Service handles composition across
// methods via TxStore.
type Store interface {
	// --- RoleStore ---

	// GetRole returns the stored role for an identity. ok is false when the
	// identity has never been assigned a role; the default-role decision
	// belongs to the Service, not the store.
	GetRole(ctx context.Context, id Identity) (role Role, ok bool, err error)

	// SetRole stores a role, overwriting any prior assignment.
	SetRole(ctx context.Context, id Identity, role Role) error

	// --- ProfileStore ---

	// GetProfileName returns the saved display name. ok is false when the
	// identity has never saved a profile.
	GetProfileName(ctx context.Context, id Identity) (name string, ok bool, err error)

	// PutProfileName creates or fully replaces the display name. The
	// completion counter is deliberately not part of this write.
	PutProfileName(ctx context.Context, id Identity, name string) error

	// --- TaskCatalog ---

	// InsertTask adds a task. Returns ErrDuplicateTask if the id exists.
	InsertTask(ctx context.Context, task Task) error

	// GetTask returns a task, or nil when absent.
	GetTask(ctx context.Context, id TaskID) (*Task, error)

	// ListTasks returns all tasks in insertion order.
	ListTasks(ctx context.Context) ([]Task, error)

	// --- CompletionLedger ---

	// MarkCompleted atomically sets the completion marker for
	// (identity, task). Returns ErrAlreadyCompleted if the marker is
	// already set. This is the single test-and-set that makes payouts
	// at-most-once, including under concurrent callers.
	MarkCompleted(ctx context.Context, id Identity, taskID TaskID) error

	// CountCompleted returns how many tasks an identity has completed.
	CountCompleted(ctx context.Context, id Identity) (int64, error)

	// --- BalanceLedger ---

	// GetBalance returns the running balance, zero for unseen identities.
	GetBalance(ctx context.Context, id Identity) (Amount, error)

	// AddBalance credits an identity. amount must be non-negative; the
	// store rejects negative credits as a fault, not a business error.
	AddBalance(ctx context.Context, id Identity, amount Amount) error

	// --- WithdrawalRequestLog ---

	// AppendWithdrawal appends an immutable log entry.
	AppendWithdrawal(ctx context.Context, req WithdrawalRequest) error

	// ListWithdrawals returns the whole log in append order.
	ListWithdrawals(ctx context.Context) ([]WithdrawalRequest, error)

	// ListWithdrawalsFor returns one identity's entries in append order.
	ListWithdrawalsFor(ctx context.Context, id Identity) ([]WithdrawalRequest, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support. Use this when an operation
// must touch several stores as one unit of work (e.g. a payout).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
