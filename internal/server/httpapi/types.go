package httpapi

import (
	"time"

	"github.com/dmitrijs2005/tasksync/internal/server/models"
)

// taskPayload is a task as uploaded by a client. Timestamps arrive as
// ISO 8601 strings; an unparseable or missing updatedAt sorts as oldest
// during reconciliation instead of failing the request. Completed is a
// pointer because the field is required and an absent value must be
// rejected, not defaulted.
type taskPayload struct {
	TaskID      string  `json:"taskId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    int     `json:"priority"`
	DueDate     *string `json:"dueDate"`
	Completed   *bool   `json:"completed"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// taskJSON is a task as returned to clients. The storage surrogate id is
// never exposed; taskId is the only identity clients see.
type taskJSON struct {
	UserID      string  `json:"userId"`
	TaskID      string  `json:"taskId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    int     `json:"priority"`
	DueDate     *string `json:"dueDate"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// updatePayload carries a partial update. Pointer fields distinguish
// "absent" from a zero value.
type updatePayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
	DueDate     *string `json:"dueDate"`
	Completed   *bool   `json:"completed"`
}

// syncRequest holds the uploaded snapshot. Tasks is a pointer so an
// absent or null field can be told apart from an empty array: only the
// latter is a valid (empty) snapshot.
type syncRequest struct {
	Tasks *[]taskPayload `json:"tasks"`
}

type syncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// timeFormat keeps millisecond precision, which is the resolution the
// conflict resolution compares at.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime accepts RFC 3339 with or without fractional seconds and
// returns the zero time when the value cannot be parsed.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toModel converts an uploaded task into the domain model. The owner is
// stamped later from the authenticated principal, never from the payload.
func (p *taskPayload) toModel() models.Task {
	t := models.Task{
		TaskID:      p.TaskID,
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		CreatedAt:   parseTime(p.CreatedAt),
		UpdatedAt:   parseTime(p.UpdatedAt),
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.DueDate != nil {
		if due := parseTime(*p.DueDate); !due.IsZero() {
			t.DueDate = &due
		}
	}
	return t
}

func toJSON(t models.Task) taskJSON {
	out := taskJSON{
		UserID:      t.UserID,
		TaskID:      t.TaskID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Completed:   t.Completed,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.DueDate != nil {
		due := formatTime(*t.DueDate)
		out.DueDate = &due
	}
	return out
}

func tasksToJSON(tasks []models.Task) []taskJSON {
	out := make([]taskJSON, len(tasks))
	for i, t := range tasks {
		out[i] = toJSON(t)
	}
	return out
}
