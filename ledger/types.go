/*
Package ledger provides the core reward accounting engine.

PURPOSE:
  This package contains the domain types and the service façade for the
  banana-earn reward system: identities complete catalog tasks, each first
  completion pays the task's reward into a running balance, and identities
  may file withdrawal requests against that balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: Opaque authenticated caller token (issued externally)
  - Role: Access level (admin, user, guest) gating privileged operations
  - Amount: A monetary quantity backed by decimal.Decimal
  - Task: An immutable catalog entry with a fixed reward
  - Profile: Display name plus the server-derived completion counter
  - WithdrawalRequest: An immutable entry in the withdrawal log

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for Identity/TaskID prevents mixed-up keys
  3. Server-derived counters: Profile.TasksCompleted is computed from
     completion markers, never taken from a client payload

SEE ALSO:
  - errors.go: Failure taxonomy for the operations on these types
  - store.go: Persistence interface
  - service.go: The façade composing the stores
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTITY & ROLE
// =============================================================================

// Identity is the opaque token of an authenticated caller. It is supplied
// per call by the auth layer; this package never creates or destroys one.
type Identity string

// Role is the access level held by an identity. Exactly one per identity;
// identities never seen by AssignRole resolve to the service's default role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole maps the wire representation to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleUser, RoleGuest:
		return Role(s), nil
	}
	return "", &InvalidRoleError{Value: s}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser || r == RoleGuest
}

// =============================================================================
// AMOUNT - Monetary quantity (single currency)
// =============================================================================

// Amount is a monetary quantity. All arithmetic goes through decimal to keep
// balances exact; rewards like 0.75 must never drift.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

// NewAmountFromString parses a decimal string like "5.00".
func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// =============================================================================
// TASK CATALOG
// =============================================================================

// TaskID is the unique key of a catalog task.
type TaskID string

// Task is a catalog entry. Tasks are immutable once created; there is no
// update or delete operation, only creation and reads.
type Task struct {
	ID          TaskID
	Title       string
	Description string
	Reward      Amount
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is an identity's display state. A profile is absent until its
// owning identity explicitly saves one; reads of an absent profile return
// nil rather than a synthesized default, which is what drives first-run
// setup in clients.
//
// TasksCompleted is authoritative server state derived from completion
// markers. A save never writes it.
type Profile struct {
	Name           string
	TasksCompleted int64
}

// =============================================================================
// WITHDRAWAL LOG
// =============================================================================

// WithdrawalRequest is one entry in the append-only withdrawal log. Entries
// are immutable once appended; the log records requests only, settlement is
// outside this system.
type WithdrawalRequest struct {
	ID          string
	Identity    Identity
	Amount      Amount
	RequestedAt time.Time
}
