package models

import "time"

// Task is a single to-do item owned by one user.
//
// TaskID is the client-generated natural key used for identity matching
// across sync boundaries. ID is the storage surrogate and never leaves
// the server. UpdatedAt is the authority for conflict resolution.
type Task struct {
	ID          string
	TaskID      string
	UserID      string
	Title       string
	Description string
	Priority    int
	DueDate     *time.Time
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskPatch enumerates the client-writable fields of a task for partial
// updates. A nil field leaves the stored value untouched, which keeps the
// write surface statically enumerable.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *int
	DueDate     *time.Time
	Completed   *bool
}

// Apply copies the present fields of the patch onto t.
func (p *TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
