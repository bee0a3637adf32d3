package tasks

import (
	"context"

	"github.com/dmitrijs2005/tasksync/internal/server/models"
)

// Repository is the task persistence contract. Every operation is scoped
// by owner, so cross-owner access surfaces as common.ErrorNotFound rather
// than anything that would leak existence.
type Repository interface {
	// ListByOwner returns all tasks for the owner, sorted by priority
	// descending, then due date ascending with nulls last.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Task, error)

	// GetByTaskID fetches one task by its natural key, scoped to owner.
	GetByTaskID(ctx context.Context, ownerID, taskID string) (*models.Task, error)

	// Insert stores a new task.
	Insert(ctx context.Context, task *models.Task) error

	// Update replaces the client-writable fields of the row matching
	// {task_id, user_id}.
	Update(ctx context.Context, task *models.Task) error

	// Delete removes the row matching {task_id, user_id}.
	Delete(ctx context.Context, ownerID, taskID string) error
}
