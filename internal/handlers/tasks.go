package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/middleware"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/service"
)

type createTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	Column      *string `json:"column"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Column      *string `json:"column"`
	Completed   *bool   `json:"completed"`
}

type moveTaskRequest struct {
	Column string `json:"column" binding:"required"`
}

type taskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Column      string    `json:"column"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h HandlerSet) ListTasks(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	filter, err := taskFilterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), user.ID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, toTaskResponse(task))
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": resp,
		"count": len(resp),
	})
}

func (h HandlerSet) GetTask(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h HandlerSet) CreateTask(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	var req createTaskRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), user.ID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Column:      req.Column,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h HandlerSet) UpdateTask(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), user.ID, id, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Column:      req.Column,
		Completed:   req.Completed,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h HandlerSet) DeleteTask(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), user.ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (h HandlerSet) ToggleTask(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	task, err := h.tasks.Toggle(c.Request.Context(), user.ID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h HandlerSet) MoveTask(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	var req moveTaskRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	task, err := h.tasks.Move(c.Request.Context(), user.ID, id, req.Column)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ExportTasks streams the caller's tasks as CSV. Mounted behind RequireLicense.
func (h HandlerSet) ExportTasks(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), user.ID, repository.TaskFilter{})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="tasks.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "title", "description", "column", "completed", "created_at", "updated_at"})
	for _, task := range tasks {
		resp := toTaskResponse(task)
		_ = w.Write([]string{
			resp.ID,
			resp.Title,
			resp.Description,
			resp.Column,
			strconv.FormatBool(resp.Completed),
			resp.CreatedAt.UTC().Format(time.RFC3339),
			resp.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.log.Warn().Err(err).Int64("user_id", user.ID).Msg("task export interrupted")
	}
}

func (h HandlerSet) taskTarget(c *gin.Context) (models.User, int64, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return models.User{}, 0, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, service.ErrTaskNotFound)
		return models.User{}, 0, false
	}
	return user, id, true
}

func taskFilterFromQuery(c *gin.Context) (repository.TaskFilter, error) {
	var filter repository.TaskFilter

	if raw, ok := c.GetQuery("completed"); ok && raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperr.New(apperr.KindValidation, "validation_error", "completed must be true or false")
		}
		filter.Completed = &completed
	}
	if column, ok := c.GetQuery("column"); ok && column != "" {
		filter.Column = &column
	}
	return filter, nil
}

func toTaskResponse(task models.Task) taskResponse {
	description := ""
	if task.Description != nil {
		description = *task.Description
	}
	return taskResponse{
		ID:          strconv.FormatInt(task.ID, 10),
		Title:       task.Title,
		Description: description,
		Column:      task.Column,
		Completed:   task.Completed,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}
