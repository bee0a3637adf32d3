// Package tasks provides the PostgreSQL-backed repository for task
// persistence and the owner-scoped queries used by sync and CRUD.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tasksync/internal/common"
	"github.com/dmitrijs2005/tasksync/internal/dbx"
	"github.com/dmitrijs2005/tasksync/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements task storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const taskColumns = `task_id, user_id, title, description, priority, due_date, completed, created_at, updated_at`

func scanTask(row interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var t models.Task
	var dueDate sql.NullTime
	if err := row.Scan(
		&t.TaskID, &t.UserID, &t.Title, &t.Description, &t.Priority,
		&dueDate, &t.Completed, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	return &t, nil
}

// ListByOwner returns the owner's tasks pre-sorted for the merged view:
// priority descending, due date ascending (nulls last), creation time as
// a stable tiebreaker.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE user_id = $1
		ORDER BY priority DESC, due_date ASC NULLS LAST, created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByTaskID fetches one task by natural key scoped to owner. A row owned
// by someone else is indistinguishable from an absent one.
func (r *PostgresRepository) GetByTaskID(ctx context.Context, ownerID, taskID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1 AND user_id = $2`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, taskID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select task: %w", err)
	}
	return t, nil
}

// Insert stores a new task under a fresh surrogate id. The surrogate never
// leaves the server; clients only ever see the natural key.
func (r *PostgresRepository) Insert(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	query := `INSERT INTO tasks (id, ` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.TaskID, task.UserID, task.Title, task.Description,
		task.Priority, task.DueDate, task.Completed, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update replaces the client-writable fields of the row matching
// {task_id, user_id}. The owner scope means a write can never touch
// another owner's row even if the natural key collided; zero rows
// affected reports ErrorNotFound.
func (r *PostgresRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks
		SET title = $1, description = $2, priority = $3, due_date = $4, completed = $5, updated_at = $6
		WHERE task_id = $7 AND user_id = $8`
	res, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Priority, task.DueDate,
		task.Completed, task.UpdatedAt, task.TaskID, task.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Delete removes the row matching {task_id, user_id}; zero rows affected
// reports ErrorNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = $1 AND user_id = $2`, taskID, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
