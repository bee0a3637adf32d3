package httpapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxTitleLength       = 500
	maxDescriptionLength = 5000
	minPriority          = 1
	maxPriority          = 5
)

// FieldError names the offending field in the client's payload, using
// index notation for array elements, e.g. "tasks[2].priority".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validateSyncTasks checks every uploaded task and collects all failures
// so the client can fix the payload in one round trip. Any failure means
// nothing is written.
func validateSyncTasks(tasks []taskPayload) []FieldError {
	var errs []FieldError
	for i, task := range tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if strings.TrimSpace(task.TaskID) == "" {
			errs = append(errs, FieldError{Field: prefix + ".taskId", Message: "Task ID is required"})
		}
		if strings.TrimSpace(task.Title) == "" {
			errs = append(errs, FieldError{Field: prefix + ".title", Message: "Title is required"})
		} else if len(task.Title) > maxTitleLength {
			errs = append(errs, FieldError{Field: prefix + ".title", Message: fmt.Sprintf("Title must be at most %d characters", maxTitleLength)})
		}
		if len(task.Description) > maxDescriptionLength {
			errs = append(errs, FieldError{Field: prefix + ".description", Message: fmt.Sprintf("Description must be at most %d characters", maxDescriptionLength)})
		}
		if task.Priority < minPriority || task.Priority > maxPriority {
			errs = append(errs, FieldError{Field: prefix + ".priority", Message: "Priority must be between 1 and 5"})
		}
		if task.Completed == nil {
			errs = append(errs, FieldError{Field: prefix + ".completed", Message: "Completed must be a boolean"})
		}
	}
	return errs
}

// validateUpdate checks the present fields of a partial update.
func validateUpdate(p *updatePayload) []FieldError {
	var errs []FieldError
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			errs = append(errs, FieldError{Field: "title", Message: "Title cannot be empty"})
		} else if len(*p.Title) > maxTitleLength {
			errs = append(errs, FieldError{Field: "title", Message: fmt.Sprintf("Title must be at most %d characters", maxTitleLength)})
		}
	}
	if p.Description != nil && len(*p.Description) > maxDescriptionLength {
		errs = append(errs, FieldError{Field: "description", Message: fmt.Sprintf("Description must be at most %d characters", maxDescriptionLength)})
	}
	if p.Priority != nil && (*p.Priority < minPriority || *p.Priority > maxPriority) {
		errs = append(errs, FieldError{Field: "priority", Message: "Priority must be between 1 and 5"})
	}
	if p.DueDate != nil {
		if _, err := time.Parse(time.RFC3339Nano, *p.DueDate); err != nil {
			errs = append(errs, FieldError{Field: "dueDate", Message: "Due date must be a valid date"})
		}
	}
	return errs
}
