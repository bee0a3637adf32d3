package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/tasksync/internal/common"
	"github.com/dmitrijs2005/tasksync/internal/server/models"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": formatTime(time.Now()),
	})
}

// handleVerifyToken lets a client check whether its credential is still
// accepted without touching any task data.
func (s *Server) handleVerifyToken(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": []FieldError{{Field: "token", Message: "Token is required"}},
		})
	}

	principal, err := s.verifier.Verify(c.UserContext(), req.Token)
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, common.ErrTokenExpired) {
			msg = "Token expired"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"valid": false,
			"error": msg,
		})
	}

	return c.JSON(fiber.Map{
		"valid":     true,
		"uid":       principal.OwnerID,
		"email":     principal.Email,
		"expiresAt": formatTime(principal.ExpiresAt),
	})
}

func (s *Server) handleListTasks(c *fiber.Ctx) error {
	principal := principalFromCtx(c)

	rows, err := s.tasks.List(c.UserContext(), principal.OwnerID)
	if err != nil {
		s.logger.Error(c.UserContext(), "error fetching tasks", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to fetch tasks",
		})
	}

	tasks := make([]models.Task, len(rows))
	for i, t := range rows {
		tasks[i] = *t
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(tasks),
		"tasks":   tasksToJSON(tasks),
	})
}

// handleSync merges the uploaded snapshot with the stored set and returns
// the merged view plus write counts. Validation failures reject the whole
// payload before anything is written.
func (s *Server) handleSync(c *fiber.Ctx) error {
	principal := principalFromCtx(c)

	// A missing or null tasks field is rejected; only an explicit array,
	// empty included, is a valid snapshot.
	var req syncRequest
	if err := c.BodyParser(&req); err != nil || req.Tasks == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": []FieldError{{Field: "tasks", Message: "Tasks must be an array"}},
		})
	}

	if errs := validateSyncTasks(*req.Tasks); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	local := make([]models.Task, len(*req.Tasks))
	for i := range *req.Tasks {
		local[i] = (*req.Tasks)[i].toModel()
	}

	res, err := s.tasks.Sync(c.UserContext(), principal, local)
	if err != nil {
		s.logger.Error(c.UserContext(), "sync failed", "owner", principal.OwnerID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Sync failed",
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Sync completed successfully",
		"stats": syncStats{
			Created: res.Created,
			Updated: res.Updated,
			Total:   len(res.Tasks),
		},
		"tasks": tasksToJSON(res.Tasks),
	})
}

func (s *Server) handleUpdateTask(c *fiber.Ctx) error {
	principal := principalFromCtx(c)
	taskID := c.Params("id")

	// An empty body is a valid no-op update: it still refreshes
	// UpdatedAt, like saving an unchanged record.
	var req updatePayload
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"errors": []FieldError{{Field: "body", Message: "Invalid request body"}},
			})
		}
	}

	if errs := validateUpdate(&req); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	patch := &models.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Completed:   req.Completed,
	}
	if req.DueDate != nil {
		due := parseTime(*req.DueDate)
		patch.DueDate = &due
	}

	task, err := s.tasks.Update(c.UserContext(), principal.OwnerID, taskID, patch)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Task not found",
			})
		}
		s.logger.Error(c.UserContext(), "error updating task", "taskId", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to update task",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task updated successfully",
		"task":    toJSON(*task),
	})
}

func (s *Server) handleDeleteTask(c *fiber.Ctx) error {
	principal := principalFromCtx(c)
	taskID := c.Params("id")

	if err := s.tasks.Delete(c.UserContext(), principal.OwnerID, taskID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Task not found",
			})
		}
		s.logger.Error(c.UserContext(), "error deleting task", "taskId", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to delete task",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Task deleted successfully",
	})
}
