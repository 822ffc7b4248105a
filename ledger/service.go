/*
service.go - The reward engine façade

PURPOSE:
  Service is the single entry point for every public operation. Each call
  (a) resolves the caller's role, (b) rejects if the operation requires a
  role the caller lacks, (c) performs the mutation or read against the
  relevant stores as one atomic step, (d) returns a result or a typed
  failure from errors.go.

AUTHORIZATION MATRIX:
  admin only:  AssignRole, CreateTask, SeedDefaultTasks, Withdrawals,
               ProfileOf (for identities other than the caller)
  any caller:  everything else, always scoped to the caller's own state

TRANSACTIONAL COMPOSITION:
  CompleteTask writes the completion marker plus the balance credit inside
  a single WithTx. The marker's test-and-set is what makes the payout
  at-most-once; the transaction is what keeps marker and credit from ever
  diverging (no marker without payout, no payout without marker).
  RequestWithdrawal runs its validate-then-append inside WithTx so the
  availability check and the log entry are one unit.

CONCURRENCY:
  The Service itself is stateless and safe for concurrent use; all
  serialization lives in the TxStore. Per spec, coarse store-level locking
  is acceptable at this scale.

SEE ALSO:
  - store.go: The persistence interface this composes
  - seed.go: The default task set
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultRole is the role resolved for identities that were never assigned
// one. Deployments wanting stricter defaults override it via WithDefaultRole.
const DefaultRole = RoleUser

// Service coordinates the stores and applies role checks.
type Service struct {
	store       TxStore
	defaultRole Role

	// Injectable for tests.
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultRole sets the role resolved for unseen identities.
func WithDefaultRole(r Role) Option {
	return func(s *Service) { s.defaultRole = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides withdrawal-request id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates the façade over the given store.
func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		defaultRole: DefaultRole,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// ROLES
// =============================================================================

// RoleOf resolves an identity's role, falling back to the configured
// default for identities never assigned one. Always succeeds short of a
// storage fault.
func (s *Service) RoleOf(ctx context.Context, id Identity) (Role, error) {
	role, ok, err := s.store.GetRole(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if !ok {
		return s.defaultRole, nil
	}
	return role, nil
}

// CallerRole returns the caller's own role.
func (s *Service) CallerRole(ctx context.Context, caller Identity) (Role, error) {
	return s.RoleOf(ctx, caller)
}

// IsAdmin reports whether the caller holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, caller Identity) (bool, error) {
	role, err := s.RoleOf(ctx, caller)
	if err != nil {
		return false, err
	}
	return role == RoleAdmin, nil
}

// AssignRole overwrites the target's role. Admin only. There is no
// self-demotion guard: an admin may reassign any identity, itself included.
func (s *Service) AssignRole(ctx context.Context, caller, target Identity, role Role) error {
	if err := s.requireAdmin(ctx, caller, "assignRole"); err != nil {
		return err
	}
	if !role.Valid() {
		return &InvalidRoleError{Value: string(role)}
	}
	if err := s.store.SetRole(ctx, target, role); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, caller Identity, op string) error {
	role, err := s.RoleOf(ctx, caller)
	if err != nil {
		return err
	}
	if role != RoleAdmin {
		return &UnauthorizedError{Identity: caller, Role: role, Operation: op}
	}
	return nil
}

// =============================================================================
// PROFILES
// =============================================================================

// OwnProfile returns the caller's profile, or nil if none was ever saved.
// The completion counter is computed from the completion markers at read
// time, so it is always consistent with paid-out completions.
func (s *Service) OwnProfile(ctx context.Context, caller Identity) (*Profile, error) {
	return s.profileOf(ctx, caller)
}

// ProfileOf returns a profile by identity. Callers may always read their
// own profile; reading anyone else's requires admin.
func (s *Service) ProfileOf(ctx context.Context, caller, target Identity) (*Profile, error) {
	if caller != target {
		if err := s.requireAdmin(ctx, caller, "getUserProfile"); err != nil {
			return nil, err
		}
	}
	return s.profileOf(ctx, target)
}

func (s *Service) profileOf(ctx context.Context, id Identity) (*Profile, error) {
	name, ok, err := s.store.GetProfileName(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	count, err := s.store.CountCompleted(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	return &Profile{Name: name, TasksCompleted: count}, nil
}

// SaveProfile creates the caller's profile on first call and fully replaces
// the name on subsequent calls. The TasksCompleted field of the payload is
// ignored: the counter is server-derived state and cannot be written by a
// client, however the payload spells it.
func (s *Service) SaveProfile(ctx context.Context, caller Identity, profile Profile) error {
	if err := s.store.PutProfileName(ctx, caller, profile.Name); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// =============================================================================
// TASK CATALOG
// =============================================================================

// CreateTask adds a task to the catalog. Admin only. Re-creating an existing
// id fails with ErrDuplicateTask rather than silently merging.
func (s *Service) CreateTask(ctx context.Context, caller Identity, task Task) error {
	if err := s.requireAdmin(ctx, caller, "createTask"); err != nil {
		return err
	}
	if task.ID == "" {
		return fmt.Errorf("%w: empty task id", ErrInvalidTask)
	}
	if task.Reward.IsNegative() {
		return fmt.Errorf("%w: negative reward", ErrInvalidTask)
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return err
	}
	return nil
}

// TaskByID returns a task or a typed not-found failure.
func (s *Service) TaskByID(ctx context.Context, id TaskID) (*Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil, &TaskNotFoundError{TaskID: id}
	}
	return task, nil
}

// Tasks returns the catalog in insertion order.
func (s *Service) Tasks(ctx context.Context) ([]Task, error) {
	return s.store.ListTasks(ctx)
}

// TasksByReward returns the catalog ordered by descending reward, with a
// stable tie-break on insertion order.
func (s *Service) TasksByReward(ctx context.Context) ([]Task, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	sortTasksByReward(tasks)
	return tasks, nil
}

// =============================================================================
// COMPLETIONS & PAYOUT
// =============================================================================

// CompleteTask records a first-time completion and pays out the task's
// reward. The second and every later attempt for the same (caller, task)
// fails with ErrAlreadyCompleted and has no side effects.
//
// Marker and credit are one transaction: a failure partway leaves neither.
func (s *Service) CompleteTask(ctx context.Context, caller Identity, taskID TaskID) error {
	task, err := s.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		// Atomic test-and-set. Concurrent calls for the same pair race on
		// this single write; exactly one wins.
		if err := tx.MarkCompleted(ctx, caller, taskID); err != nil {
			return err
		}
		if err := tx.AddBalance(ctx, caller, task.Reward); err != nil {
			return fmt.Errorf("credit payout: %w", err)
		}
		return nil
	})
}

// =============================================================================
// BALANCE & WITHDRAWALS
// =============================================================================

// Balance returns the caller's running total, zero for identities that
// never earned anything.
func (s *Service) Balance(ctx context.Context, caller Identity) (Amount, error) {
	return s.store.GetBalance(ctx, caller)
}

// RequestWithdrawal validates and appends a withdrawal request. Nothing is
// debited - the balance is the credited total and settlement is outside
// this system - but validation runs against the funds not already claimed
// by earlier requests, so the same funds cannot be requested twice.
func (s *Service) RequestWithdrawal(ctx context.Context, caller Identity, amount Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		available, err := availableFunds(ctx, tx, caller)
		if err != nil {
			return err
		}
		if amount.GreaterThan(available) {
			return &InsufficientBalanceError{
				Identity:  caller,
				Available: available,
				Requested: amount,
			}
		}
		return tx.AppendWithdrawal(ctx, WithdrawalRequest{
			ID:          s.newID(),
			Identity:    caller,
			Amount:      amount,
			RequestedAt: s.now(),
		})
	})
}

// availableFunds is the credited balance minus everything already requested
// for withdrawal. Computed from the log at call time; no stored balance is
// ever decremented.
func availableFunds(ctx context.Context, tx Store, id Identity) (Amount, error) {
	balance, err := tx.GetBalance(ctx, id)
	if err != nil {
		return Amount{}, fmt.Errorf("load balance: %w", err)
	}
	requests, err := tx.ListWithdrawalsFor(ctx, id)
	if err != nil {
		return Amount{}, fmt.Errorf("load withdrawal requests: %w", err)
	}
	available := balance
	for _, req := range requests {
		available = available.Sub(req.Amount)
	}
	return available, nil
}

// Withdrawals returns the full withdrawal log. Admin only: non-admins get a
// typed Unauthorized failure, never an empty list.
func (s *Service) Withdrawals(ctx context.Context, caller Identity) ([]WithdrawalRequest, error) {
	if err := s.requireAdmin(ctx, caller, "getAllWithdrawalRequests"); err != nil {
		return nil, err
	}
	return s.store.ListWithdrawals(ctx)
}

// OwnWithdrawals returns the caller's own entries. No role required.
func (s *Service) OwnWithdrawals(ctx context.Context, caller Identity) ([]WithdrawalRequest, error) {
	return s.store.ListWithdrawalsFor(ctx, caller)
}

// sortTasksByReward orders tasks by descending reward, stable on input
// order so equal rewards keep insertion order.
func sortTasksByReward(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Reward.GreaterThan(tasks[j].Reward)
	})
}
