package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tasksync/internal/common"
	"github.com/dmitrijs2005/tasksync/internal/dbx"
	"github.com/dmitrijs2005/tasksync/internal/logging"
	"github.com/dmitrijs2005/tasksync/internal/server/auth"
	"github.com/dmitrijs2005/tasksync/internal/server/config"
	"github.com/dmitrijs2005/tasksync/internal/server/models"
	"github.com/dmitrijs2005/tasksync/internal/server/ratelimit"
	"github.com/dmitrijs2005/tasksync/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/tasksync/internal/server/services"
)

const testSecret = "test-secret"

// memRepo is an in-memory tasks.Repository for handler tests.
type memRepo struct {
	rows map[string]map[string]*models.Task
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]map[string]*models.Task{}}
}

func (m *memRepo) put(t models.Task) {
	if m.rows[t.UserID] == nil {
		m.rows[t.UserID] = map[string]*models.Task{}
	}
	cp := t
	m.rows[t.UserID][t.TaskID] = &cp
}

func (m *memRepo) ListByOwner(_ context.Context, ownerID string) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range m.rows[ownerID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) GetByTaskID(_ context.Context, ownerID, taskID string) (*models.Task, error) {
	t, ok := m.rows[ownerID][taskID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) Insert(_ context.Context, t *models.Task) error {
	m.put(*t)
	return nil
}

func (m *memRepo) Update(_ context.Context, t *models.Task) error {
	if _, ok := m.rows[t.UserID][t.TaskID]; !ok {
		return common.ErrorNotFound
	}
	m.put(*t)
	return nil
}

func (m *memRepo) Delete(_ context.Context, ownerID, taskID string) error {
	if _, ok := m.rows[ownerID][taskID]; !ok {
		return common.ErrorNotFound
	}
	delete(m.rows[ownerID], taskID)
	return nil
}

var _ tasks.Repository = (*memRepo)(nil)

type memRepoManager struct {
	repo *memRepo
}

func (m *memRepoManager) Tasks(_ dbx.DBTX) tasks.Repository { return m.repo }

// stubLimiter implements ratelimit.Allower with a fixed decision.
type stubLimiter struct {
	allowed bool
	err     error
}

func (l *stubLimiter) Allow(_ context.Context, _ string, limit int, window time.Duration) (*ratelimit.Result, error) {
	if l.err != nil {
		return nil, l.err
	}
	remaining := limit - 1
	if !l.allowed {
		remaining = 0
	}
	return &ratelimit.Result{
		Allowed:   l.allowed,
		Remaining: remaining,
		ResetAt:   time.Now().Add(window),
		Limit:     limit,
	}, nil
}

type testEnv struct {
	server  *Server
	repo    *memRepo
	limiter *stubLimiter
	mock    sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = testSecret
	cfg.AllowedOrigins = []string{"https://app.example.com", "https://*.preview.example.com"}

	repo := newMemRepo()
	limiter := &stubLimiter{allowed: true}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	verifier := auth.NewVerifier([]byte(testSecret), nil)
	svc := services.NewTaskService(db, &memRepoManager{repo: repo})

	return &testEnv{
		server:  New(cfg, logger, verifier, svc, limiter),
		repo:    repo,
		limiter: limiter,
		mock:    mock,
	}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.GenerateToken(subject, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, env *testEnv, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := env.server.App().Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestAuth_MissingHeader(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, "No token provided. Authorization header must be in format: Bearer <token>", body["message"])
}

func TestAuth_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	expired, err := auth.GenerateToken("u1", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	resp, body := doJSON(t, env, http.MethodGet, "/api/tasks", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has expired. Please sign in again.", body["message"])
}

func TestAuth_GarbageToken(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodGet, "/api/tasks", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid token format or signature", body["message"])
}

func TestListTasks_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.repo.put(models.Task{TaskID: "t1", UserID: "u1", Title: "Mine", Priority: 3, CreatedAt: now, UpdatedAt: now})
	env.repo.put(models.Task{TaskID: "t2", UserID: "u2", Title: "Theirs", Priority: 3, CreatedAt: now, UpdatedAt: now})

	resp, body := doJSON(t, env, http.MethodGet, "/api/tasks", token(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["count"])

	list := body["tasks"].([]any)
	require.Len(t, list, 1)
	got := list[0].(map[string]any)
	assert.Equal(t, "t1", got["taskId"])
	assert.Equal(t, "u1", got["userId"])
}

func TestSync_CreatesAndReportsStats(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]any{
		"tasks": []map[string]any{{
			"taskId":    "t1",
			"title":     "Buy milk",
			"priority":  2,
			"completed": false,
			"updatedAt": "2024-05-01T10:00:00.000Z",
		}},
	}

	resp, body := doJSON(t, env, http.MethodPost, "/api/tasks/sync", token(t, "u1"), payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Sync completed successfully", body["message"])

	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["created"])
	assert.EqualValues(t, 0, stats["updated"])
	assert.EqualValues(t, 1, stats["total"])

	stored, err := env.repo.GetByTaskID(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", stored.Title)
}

func TestSync_InvalidPriorityRejectsWholePayload(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]any{
		"tasks": []map[string]any{
			{"taskId": "t1", "title": "ok", "priority": 3, "completed": false, "updatedAt": "2024-05-01T10:00:00.000Z"},
			{"taskId": "t2", "title": "bad", "priority": 7, "completed": false, "updatedAt": "2024-05-01T10:00:00.000Z"},
		},
	}

	resp, body := doJSON(t, env, http.MethodPost, "/api/tasks/sync", token(t, "u1"), payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	fieldErr := errs[0].(map[string]any)
	assert.Equal(t, "tasks[1].priority", fieldErr["field"])
	assert.Equal(t, "Priority must be between 1 and 5", fieldErr["message"])

	// Nothing written, including the valid element.
	_, err := env.repo.GetByTaskID(context.Background(), "u1", "t1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSync_MissingTasksFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.repo.put(models.Task{TaskID: "t1", UserID: "u1", Title: "Stored", Priority: 3, CreatedAt: now, UpdatedAt: now})

	for _, payload := range []map[string]any{
		{},
		{"tasks": nil},
	} {
		resp, body := doJSON(t, env, http.MethodPost, "/api/tasks/sync", token(t, "u1"), payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		errs := body["errors"].([]any)
		require.Len(t, errs, 1)
		fieldErr := errs[0].(map[string]any)
		assert.Equal(t, "tasks", fieldErr["field"])
		assert.Equal(t, "Tasks must be an array", fieldErr["message"])
	}
}

func TestSync_EmptyArrayIsValidSnapshot(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.repo.put(models.Task{TaskID: "t1", UserID: "u1", Title: "Stored", Priority: 3, CreatedAt: now, UpdatedAt: now})

	resp, body := doJSON(t, env, http.MethodPost, "/api/tasks/sync", token(t, "u1"), map[string]any{
		"tasks": []map[string]any{},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 0, stats["created"])
	assert.EqualValues(t, 1, stats["total"])
}

func TestSync_MissingCompletedRejected(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodPost, "/api/tasks/sync", token(t, "u1"), map[string]any{
		"tasks": []map[string]any{{
			"taskId":    "t1",
			"title":     "No completed flag",
			"priority":  3,
			"updatedAt": "2024-05-01T10:00:00.000Z",
		}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	fieldErr := errs[0].(map[string]any)
	assert.Equal(t, "tasks[0].completed", fieldErr["field"])
	assert.Equal(t, "Completed must be a boolean", fieldErr["message"])
}

func TestSync_OwnerComesFromToken(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]any{
		"tasks": []map[string]any{{
			"taskId":    "t1",
			"title":     "Spoofed",
			"priority":  3,
			"completed": false,
			"userId":    "someone-else",
			"updatedAt": "2024-05-01T10:00:00.000Z",
		}},
	}

	resp, _ := doJSON(t, env, http.MethodPost, "/api/tasks/sync", token(t, "u1"), payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := env.repo.GetByTaskID(context.Background(), "someone-else", "t1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	stored, err := env.repo.GetByTaskID(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestUpdateTask_Success(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.repo.put(models.Task{TaskID: "t1", UserID: "u1", Title: "Old", Priority: 3, CreatedAt: now, UpdatedAt: now})

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	resp, body := doJSON(t, env, http.MethodPut, "/api/tasks/t1", token(t, "u1"), map[string]any{
		"title":     "New",
		"completed": true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Task updated successfully", body["message"])

	task := body["task"].(map[string]any)
	assert.Equal(t, "New", task["title"])
	assert.Equal(t, true, task["completed"])
}

func TestUpdateTask_EmptyBodyRefreshesTimestamp(t *testing.T) {
	env := newTestEnv(t)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	env.repo.put(models.Task{TaskID: "t1", UserID: "u1", Title: "Unchanged", Priority: 3, CreatedAt: created, UpdatedAt: created})

	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	resp, body := doJSON(t, env, http.MethodPut, "/api/tasks/t1", token(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	task := body["task"].(map[string]any)
	assert.Equal(t, "Unchanged", task["title"])
	updatedAt, err := time.Parse(timeFormat, task["updatedAt"].(string))
	require.NoError(t, err)
	assert.True(t, updatedAt.After(created), "no-op update must still refresh updatedAt")
}

func TestUpdateTask_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodPut, "/api/tasks/t1", token(t, "u1"), map[string]any{
		"priority": 9,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	fieldErr := errs[0].(map[string]any)
	assert.Equal(t, "priority", fieldErr["field"])
}

func TestUpdateTask_NotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectBegin()
	env.mock.ExpectRollback()

	resp, body := doJSON(t, env, http.MethodPut, "/api/tasks/absent", token(t, "u1"), map[string]any{
		"title": "whatever",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", body["error"])
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	env.repo.put(models.Task{TaskID: "t1", UserID: "u1", Title: "A", Priority: 3})

	resp, body := doJSON(t, env, http.MethodDelete, "/api/tasks/t1", token(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Task deleted successfully", body["message"])

	resp, body = doJSON(t, env, http.MethodDelete, "/api/tasks/t1", token(t, "u1"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", body["error"])
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid token", func(t *testing.T) {
		resp, body := doJSON(t, env, http.MethodPost, "/api/auth/verify", "", map[string]any{
			"token": token(t, "u1"),
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, "u1", body["uid"])
		assert.NotEmpty(t, body["expiresAt"])
	})

	t.Run("missing token", func(t *testing.T) {
		resp, body := doJSON(t, env, http.MethodPost, "/api/auth/verify", "", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotNil(t, body["errors"])
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := auth.GenerateToken("u1", []byte(testSecret), -time.Minute)
		require.NoError(t, err)

		resp, body := doJSON(t, env, http.MethodPost, "/api/auth/verify", "", map[string]any{
			"token": expired,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, false, body["valid"])
		assert.Equal(t, "Token expired", body["error"])
	})
}

func TestRateLimit_Exceeded(t *testing.T) {
	env := newTestEnv(t)
	env.limiter.allowed = false

	resp, body := doJSON(t, env, http.MethodGet, "/api/tasks", token(t, "u1"), nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many requests", body["error"])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("RateLimit-Remaining"))
}

func TestRateLimit_FailsOpenOnBackendError(t *testing.T) {
	env := newTestEnv(t)
	env.limiter.err = context.DeadlineExceeded

	resp, _ := doJSON(t, env, http.MethodGet, "/api/tasks", token(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		resp, err := env.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("exact origin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://app.example.com")
		resp, err := env.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard origin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://pr-42.preview.example.com")
		resp, err := env.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
		req.Header.Set("Origin", "https://app.example.com")
		resp, err := env.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PUT")
	})

	t.Run("no origin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, err := env.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, env, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Route not found", body["error"])
}
