package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/model"
	tasksvc "taskboard/internal/service/task"
	"taskboard/internal/stats"
)

const defaultWindows = 6

// TaskService is the part of task.Service the HTTP layer uses.
type TaskService interface {
	List(ctx context.Context, userID string, f tasksvc.Filter) ([]model.Task, error)
	Create(ctx context.Context, userID string, in tasksvc.Input) (*model.Task, error)
	Update(ctx context.Context, userID string, in tasksvc.Input) (*model.Task, error)
	ToggleImportant(ctx context.Context, userID string, id int64) (*model.Task, error)
	Delete(ctx context.Context, userID string, id int64) error
	Summarize(ctx context.Context, userID string, g stats.Granularity, windows int) (*tasksvc.Summary, error)
}

type TaskHandler struct {
	tasks  TaskService
	logger *zap.Logger
	loc    *time.Location
}

func NewTaskHandler(tasks TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger, loc: time.Local}
}

// taskRequest is the JSON body of POST and PUT /tasks. Owner fields sent by
// the client are not decoded.
type taskRequest struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Date        string             `json:"date"`
	Status      model.Status       `json:"status"`
	Important   bool               `json:"important"`
	Notes       string             `json:"notes"`
	Links       []model.Link       `json:"links"`
	Attachments []model.Attachment `json:"attachments"`
}

func (r taskRequest) input(loc *time.Location) (tasksvc.Input, error) {
	in := tasksvc.Input{
		ID:          r.ID,
		Title:       r.Title,
		Status:      r.Status,
		Important:   r.Important,
		Notes:       r.Notes,
		Links:       r.Links,
		Attachments: r.Attachments,
	}
	if s := strings.TrimSpace(r.Date); s != "" {
		d, err := parseDate(s, loc)
		if err != nil {
			return in, err
		}
		in.Date = &d
	}
	return in, nil
}

// parseDate accepts RFC 3339 timestamps and bare YYYY-MM-DD days.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return tasksvc.ParseDay(s, loc)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: task id is required", model.ErrValidation)
	}
	return id, nil
}

// ListTasks handles GET /tasks?view=&on=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	l := requestLogger(c, h.logger, "ListTasks", zap.String("user_id", userID))
	view, err := tasksvc.ParseView(c.Query("view"))
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	filter := tasksvc.Filter{View: view}
	if on := c.Query("on"); on != "" {
		day, err := tasksvc.ParseDay(on, h.loc)
		if err != nil {
			respondError(c, h.logger, "ListTasks", err)
			return
		}
		filter.On = &day
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	l.Info("ListTasks: success", zap.String("view", string(view)), zap.Int("count", len(tasks)))
	c.JSON(http.StatusOK, gin.H{"success": true, "tasks": tasks})
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	l := requestLogger(c, h.logger, "CreateTask", zap.String("user_id", userID))
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := req.input(h.loc)
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}

	l.Info("CreateTask: success", zap.Int64("task_id", task.ID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task created successfully",
		"task":    task,
	})
}

// UpdateTask handles PUT /tasks. The body replaces the stored task.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	l := requestLogger(c, h.logger, "UpdateTask", zap.String("user_id", userID))
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID <= 0 || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, "Task ID and title are required")
		return
	}
	in, err := req.input(h.loc)
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	l.Info("UpdateTask: success", zap.Int64("task_id", task.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

// DeleteTask handles DELETE /tasks?id=
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	l := requestLogger(c, h.logger, "DeleteTask", zap.String("user_id", userID))
	id, err := parseID(c.Query("id"))
	if err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	l.Info("DeleteTask: success", zap.Int64("task_id", id))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task deleted successfully"})
}

// ToggleImportant handles POST /tasks/important?id=
func (h *TaskHandler) ToggleImportant(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	l := requestLogger(c, h.logger, "ToggleImportant", zap.String("user_id", userID))
	id, err := parseID(c.Query("id"))
	if err != nil {
		respondError(c, h.logger, "ToggleImportant", err)
		return
	}
	task, err := h.tasks.ToggleImportant(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, "ToggleImportant", err)
		return
	}
	l.Info("ToggleImportant: success", zap.Int64("task_id", task.ID), zap.Bool("important", task.Important))
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

// Stats handles GET /tasks/stats?granularity=&windows=
func (h *TaskHandler) Stats(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	l := requestLogger(c, h.logger, "Stats", zap.String("user_id", userID))
	g, err := stats.ParseGranularity(c.Query("granularity"))
	if err != nil {
		respondError(c, h.logger, "Stats", err)
		return
	}
	windows := defaultWindows
	if raw := c.Query("windows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "Windows must be a number")
			return
		}
		windows = n
	}

	summary, err := h.tasks.Summarize(c.Request.Context(), userID, g, windows)
	if err != nil {
		respondError(c, h.logger, "Stats", err)
		return
	}
	l.Info("Stats: success", zap.String("granularity", string(g)), zap.Int("windows", windows))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   summary.Stats,
		"series":  summary.Series,
	})
}
