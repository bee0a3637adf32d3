// Package services contains server-side business logic. This file
// implements TaskService: sync orchestration around the reconciler plus
// the owner-scoped CRUD operations.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tasksync/internal/dbx"
	"github.com/dmitrijs2005/tasksync/internal/server/models"
	"github.com/dmitrijs2005/tasksync/internal/server/reconcile"
	"github.com/dmitrijs2005/tasksync/internal/server/repositories/repomanager"
)

// SyncResult is the merged view returned to the client plus write counts.
type SyncResult struct {
	Tasks   []models.Task
	Created int
	Updated int
}

// TaskService orchestrates task persistence: it fetches state, invokes the
// reconciler, and executes the resulting write plan. The reconciler itself
// never touches the store.
type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewTaskService constructs a TaskService over the shared database handle.
func NewTaskService(db *sql.DB, m repomanager.RepositoryManager) *TaskService {
	return &TaskService{db: db, repomanager: m}
}

// List returns all tasks for the owner, sorted by priority descending then
// due date ascending.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]*models.Task, error) {
	repo := s.repomanager.Tasks(s.db)
	result, err := repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error loading tasks: %w", err)
	}
	return result, nil
}

// Sync reconciles the client's task snapshot with the stored set and
// applies the resulting write plan. Any failed write aborts the whole
// operation; no partial success is reported, and the idempotent merge
// makes a failed sync fully retryable with the same payload.
//
// The fetch/reconcile/write sequence is not serialized per owner: two
// concurrent syncs for the same owner can interleave and the later write
// wins per task. Writes stay owner-scoped either way.
func (s *TaskService) Sync(ctx context.Context, principal *models.Principal, local []models.Task) (*SyncResult, error) {
	repo := s.repomanager.Tasks(s.db)

	remoteRows, err := repo.ListByOwner(ctx, principal.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("error loading tasks: %w", err)
	}
	remote := make([]models.Task, len(remoteRows))
	for i, t := range remoteRows {
		remote[i] = *t
	}

	// Tasks a client created offline may arrive without a creation time.
	// UpdatedAt is left alone: a missing value sorts as oldest by design.
	now := time.Now().UTC()
	snapshot := make([]models.Task, len(local))
	for i, t := range local {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		snapshot[i] = t
	}

	res := reconcile.Reconcile(principal.OwnerID, snapshot, remote)

	// Per-item writes, not one all-or-nothing transaction: each task was
	// classified independently and a retry re-converges on the same plan.
	for i := range res.ToCreate {
		if err := repo.Insert(ctx, &res.ToCreate[i]); err != nil {
			return nil, fmt.Errorf("error creating task %s: %w", res.ToCreate[i].TaskID, err)
		}
	}
	for i := range res.ToUpdate {
		if err := repo.Update(ctx, &res.ToUpdate[i]); err != nil {
			return nil, fmt.Errorf("error updating task %s: %w", res.ToUpdate[i].TaskID, err)
		}
	}

	return &SyncResult{
		Tasks:   res.Merged,
		Created: len(res.ToCreate),
		Updated: len(res.ToUpdate),
	}, nil
}

// Update applies the present fields of patch to the owner's task and
// refreshes UpdatedAt. A row owned by someone else reports ErrorNotFound,
// exactly like an absent one.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, patch *models.TaskPatch) (*models.Task, error) {
	var updated *models.Task
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tasks(tx)
		task, err := repo.GetByTaskID(ctx, ownerID, taskID)
		if err != nil {
			return err
		}
		patch.Apply(task)
		task.UpdatedAt = time.Now().UTC()
		if err := repo.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the owner's task by natural key.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	repo := s.repomanager.Tasks(s.db)
	return repo.Delete(ctx, ownerID, taskID)
}
