package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipi20xx/emby-auto-tags/internal/scheduler"
)

// SchedulerHandlers exposes the background task schedule.
type SchedulerHandlers struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerHandlers creates a scheduler handlers instance.
func NewSchedulerHandlers(sched *scheduler.Scheduler) *SchedulerHandlers {
	return &SchedulerHandlers{scheduler: sched}
}

// RegisterRoutes registers scheduler routes on the given group.
func (h *SchedulerHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/tasks", h.ListTasks)
	g.GET("/tasks/:id", h.GetTask)
	g.POST("/tasks/:id/run", h.RunTask)
}

// ListTasks returns all scheduled tasks.
// GET /api/scheduler/tasks
func (h *SchedulerHandlers) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns one scheduled task.
// GET /api/scheduler/tasks/:id
func (h *SchedulerHandlers) GetTask(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask triggers a scheduled task outside its cron.
// POST /api/scheduler/tasks/:id/run
func (h *SchedulerHandlers) RunTask(c echo.Context) error {
	taskID := c.Param("id")
	if err := h.scheduler.RunNow(taskID); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrTaskNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, scheduler.ErrTaskRunning):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "started",
		"taskId": taskID,
	})
}
