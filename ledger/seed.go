/*
seed.go - Default task catalog

PURPOSE:
  Bulk-inserts the starter task set shipped with the product. Single
  CreateTask calls are not idempotent (duplicate ids are rejected), but
  seeding is idempotent at the set level: each task is checked for
  existence first and already-present ids are skipped, so re-running the
  seed never fails the batch and never duplicates entries.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// defaultTasks is the starter catalog. Ids follow the task1..taskN
// convention the shipped clients rely on.
var defaultTasks = []Task{
	{ID: "task1", Title: "Set up your profile", Description: "Add a display name so other users can recognize you.", Reward: NewAmount(1.50)},
	{ID: "task2", Title: "Watch the welcome video", Description: "A two-minute tour of how earning and withdrawals work.", Reward: NewAmount(0.75)},
	{ID: "task3", Title: "Complete the starter survey", Description: "Tell us what kinds of tasks you want to see.", Reward: NewAmount(2.50)},
	{ID: "task4", Title: "Refer a friend", Description: "Share your invite link and have a friend sign up.", Reward: NewAmount(5.00)},
	{ID: "task5", Title: "Connect a social account", Description: "Link one social account to your profile.", Reward: NewAmount(1.25)},
	{ID: "task6", Title: "Write your first review", Description: "Review any completed task to help others pick.", Reward: NewAmount(3.00)},
}

// SeedDefaultTasks inserts the starter set. Admin only. Tasks whose id is
// already present are skipped rather than failing the whole batch.
func (s *Service) SeedDefaultTasks(ctx context.Context, caller Identity) error {
	if err := s.requireAdmin(ctx, caller, "seedDefaultTasks"); err != nil {
		return err
	}
	return SeedCatalog(ctx, s.store)
}

// SeedCatalog runs the insert-or-skip loop directly against a store. The
// server uses it at startup (no caller identity exists yet); the admin
// operation above is the same loop behind the role gate.
func SeedCatalog(ctx context.Context, store Store) error {
	for _, task := range defaultTasks {
		existing, err := store.GetTask(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("seed: load %q: %w", task.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := store.InsertTask(ctx, task); err != nil {
			// A concurrent seed may have inserted between check and insert.
			if errors.Is(err, ErrDuplicateTask) {
				continue
			}
			return fmt.Errorf("seed: insert %q: %w", task.ID, err)
		}
	}
	return nil
}

// DefaultTaskCount reports the size of the starter set. Used by tests and
// the seed endpoint's response.
func DefaultTaskCount() int { return len(defaultTasks) }
