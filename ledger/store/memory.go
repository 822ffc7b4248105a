// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/caffeinepub/banana-earn/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	roles       map[ledger.Identity]ledger.Role
	profiles    map[ledger.Identity]string
	tasks       []ledger.Task
	taskIndex   map[ledger.TaskID]int
	completions map[completionKey]bool
	balances    map[ledger.Identity]ledger.Amount
	withdrawals []ledger.WithdrawalRequest
}

type completionKey struct {
	Identity ledger.Identity
	TaskID   ledger.TaskID
}

func NewMemory() *Memory {
	return &Memory{
		roles:       make(map[ledger.Identity]ledger.Role),
		profiles:    make(map[ledger.Identity]string),
		taskIndex:   make(map[ledger.TaskID]int),
		completions: make(map[completionKey]bool),
		balances:    make(map[ledger.Identity]ledger.Amount),
	}
}

// --- RoleStore ---

func (m *Memory) GetRole(_ context.Context, id ledger.Identity) (ledger.Role, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[id]
	return role, ok, nil
}

func (m *Memory) SetRole(_ context.Context, id ledger.Identity, role ledger.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[id] = role
	return nil
}

// --- ProfileStore ---

func (m *Memory) GetProfileName(_ context.Context, id ledger.Identity) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.profiles[id]
	return name, ok, nil
}

func (m *Memory) PutProfileName(_ context.Context, id ledger.Identity, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = name
	return nil
}

// --- TaskCatalog ---

func (m *Memory) InsertTask(_ context.Context, task ledger.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTaskLocked(task)
}

func (m *Memory) insertTaskLocked(task ledger.Task) error {
	if _, exists := m.taskIndex[task.ID]; exists {
		return ledger.ErrDuplicateTask
	}
	m.taskIndex[task.ID] = len(m.tasks)
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *Memory) GetTask(_ context.Context, id ledger.TaskID) (*ledger.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.taskIndex[id]
	if !ok {
		return nil, nil
	}
	task := m.tasks[i]
	return &task, nil
}

func (m *Memory) ListTasks(_ context.Context) ([]ledger.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Task, len(m.tasks))
	copy(result, m.tasks)
	return result, nil
}

// --- CompletionLedger ---

// MarkCompleted is the atomic test-and-set. Under the write lock, check and
// insert are one step, so concurrent completions of the same pair see
// exactly one winner.
func (m *Memory) MarkCompleted(_ context.Context, id ledger.Identity, taskID ledger.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markCompletedLocked(id, taskID)
}

func (m *Memory) markCompletedLocked(id ledger.Identity, taskID ledger.TaskID) error {
	k := completionKey{Identity: id, TaskID: taskID}
	if m.completions[k] {
		return ledger.ErrAlreadyCompleted
	}
	m.completions[k] = true
	return nil
}

func (m *Memory) CountCompleted(_ context.Context, id ledger.Identity) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countCompletedLocked(id), nil
}

func (m *Memory) countCompletedLocked(id ledger.Identity) int64 {
	var n int64
	for k := range m.completions {
		if k.Identity == id {
			n++
		}
	}
	return n
}

// --- BalanceLedger ---

func (m *Memory) GetBalance(_ context.Context, id ledger.Identity) (ledger.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(id), nil
}

func (m *Memory) balanceLocked(id ledger.Identity) ledger.Amount {
	if b, ok := m.balances[id]; ok {
		return b
	}
	return ledger.ZeroAmount()
}

func (m *Memory) AddBalance(_ context.Context, id ledger.Identity, amount ledger.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addBalanceLocked(id, amount)
}

func (m *Memory) addBalanceLocked(id ledger.Identity, amount ledger.Amount) error {
	if amount.IsNegative() {
		return ledger.ErrInvalidAmount
	}
	m.balances[id] = m.balanceLocked(id).Add(amount)
	return nil
}

// --- WithdrawalRequestLog ---

func (m *Memory) AppendWithdrawal(_ context.Context, req ledger.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals = append(m.withdrawals, req)
	return nil
}

func (m *Memory) ListWithdrawals(_ context.Context) ([]ledger.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.WithdrawalRequest, len(m.withdrawals))
	copy(result, m.withdrawals)
	return result, nil
}

func (m *Memory) ListWithdrawalsFor(_ context.Context, id ledger.Identity) ([]ledger.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.WithdrawalRequest
	for _, req := range m.withdrawals {
		if req.Identity == id {
			result = append(result, req)
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot taken under the write lock and restored on
// error. Holding the lock for the whole function also gives serializable
// semantics between transactions.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	completions map[completionKey]bool
	balances    map[ledger.Identity]ledger.Amount
	withdrawals []ledger.WithdrawalRequest
}

// snapshot copies only the state WithTx callers mutate (completions,
// balances, withdrawal log).
func (tm *TxMemory) snapshot() memorySnapshot {
	comps := make(map[completionKey]bool, len(tm.completions))
	for k, v := range tm.completions {
		comps[k] = v
	}
	bals := make(map[ledger.Identity]ledger.Amount, len(tm.balances))
	for k, v := range tm.balances {
		bals[k] = v
	}
	wds := append([]ledger.WithdrawalRequest{}, tm.withdrawals...)
	return memorySnapshot{completions: comps, balances: bals, withdrawals: wds}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.completions = s.completions
	tm.balances = s.balances
	tm.withdrawals = s.withdrawals
}

// txMemoryView operates on the parent without re-acquiring its lock (the
// lock is held by WithTx for the duration).
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetRole(_ context.Context, id ledger.Identity) (ledger.Role, bool, error) {
	role, ok := tv.parent.roles[id]
	return role, ok, nil
}

func (tv *txMemoryView) SetRole(_ context.Context, id ledger.Identity, role ledger.Role) error {
	tv.parent.roles[id] = role
	return nil
}

func (tv *txMemoryView) GetProfileName(_ context.Context, id ledger.Identity) (string, bool, error) {
	name, ok := tv.parent.profiles[id]
	return name, ok, nil
}

func (tv *txMemoryView) PutProfileName(_ context.Context, id ledger.Identity, name string) error {
	tv.parent.profiles[id] = name
	return nil
}

func (tv *txMemoryView) InsertTask(_ context.Context, task ledger.Task) error {
	return tv.parent.insertTaskLocked(task)
}

func (tv *txMemoryView) GetTask(_ context.Context, id ledger.TaskID) (*ledger.Task, error) {
	i, ok := tv.parent.taskIndex[id]
	if !ok {
		return nil, nil
	}
	task := tv.parent.tasks[i]
	return &task, nil
}

func (tv *txMemoryView) ListTasks(_ context.Context) ([]ledger.Task, error) {
	result := make([]ledger.Task, len(tv.parent.tasks))
	copy(result, tv.parent.tasks)
	return result, nil
}

func (tv *txMemoryView) MarkCompleted(_ context.Context, id ledger.Identity, taskID ledger.TaskID) error {
	return tv.parent.markCompletedLocked(id, taskID)
}

func (tv *txMemoryView) CountCompleted(_ context.Context, id ledger.Identity) (int64, error) {
	return tv.parent.countCompletedLocked(id), nil
}

func (tv *txMemoryView) GetBalance(_ context.Context, id ledger.Identity) (ledger.Amount, error) {
	return tv.parent.balanceLocked(id), nil
}

func (tv *txMemoryView) AddBalance(_ context.Context, id ledger.Identity, amount ledger.Amount) error {
	return tv.parent.addBalanceLocked(id, amount)
}

func (tv *txMemoryView) AppendWithdrawal(_ context.Context, req ledger.WithdrawalRequest) error {
	tv.parent.withdrawals = append(tv.parent.withdrawals, req)
	return nil
}

func (tv *txMemoryView) ListWithdrawals(_ context.Context) ([]ledger.WithdrawalRequest, error) {
	result := make([]ledger.WithdrawalRequest, len(tv.parent.withdrawals))
	copy(result, tv.parent.withdrawals)
	return result, nil
}

func (tv *txMemoryView) ListWithdrawalsFor(_ context.Context, id ledger.Identity) ([]ledger.WithdrawalRequest, error) {
	var result []ledger.WithdrawalRequest
	for _, req := range tv.parent.withdrawals {
		if req.Identity == id {
			result = append(result, req)
		}
	}
	return result, nil
}
