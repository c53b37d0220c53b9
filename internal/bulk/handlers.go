package bulk

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

// Handlers provides HTTP handlers for bulk runs and task queries.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new bulk handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers bulk and task routes on the API group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/bulk/run", h.Run)
	g.POST("/bulk/clear-tags", h.ClearTags)
	g.POST("/bulk/remove-tags", h.RemoveTags)
	g.GET("/tasks", h.ListTasks)
	g.GET("/tasks/:id", h.GetTask)
}

// RunRequest starts a bulk tagging run.
type RunRequest struct {
	Mode  string `json:"mode"`
	Scope string `json:"scope"`
}

// RemoveTagsRequest strips specific tags from the library.
type RemoveTagsRequest struct {
	Tags  []string `json:"tags"`
	Scope string   `json:"scope"`
}

// ScopedRequest covers runs that only pick a scope.
type ScopedRequest struct {
	Scope string `json:"scope"`
}

// Run starts a library-wide tagging run.
// POST /api/bulk/run
func (h *Handlers) Run(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	mode := tagging.ModeMerge
	if req.Mode != "" {
		parsed, err := tagging.ParseMode(req.Mode)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		mode = parsed
	}
	scope, ok := ParseScope(req.Scope)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "scope must be all or favorites")
	}

	task, err := h.service.Run(mode, scope, history.SourceBulk)
	if err != nil {
		return startError(err)
	}
	return c.JSON(http.StatusAccepted, task)
}

// ClearTags starts a run that wipes all tags in scope.
// POST /api/bulk/clear-tags
func (h *Handlers) ClearTags(c echo.Context) error {
	var req ScopedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	scope, ok := ParseScope(req.Scope)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "scope must be all or favorites")
	}

	task, err := h.service.ClearTags(scope)
	if err != nil {
		return startError(err)
	}
	return c.JSON(http.StatusAccepted, task)
}

// RemoveTags starts a run that strips the given tags in scope.
// POST /api/bulk/remove-tags
func (h *Handlers) RemoveTags(c echo.Context) error {
	var req RemoveTagsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	scope, ok := ParseScope(req.Scope)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "scope must be all or favorites")
	}

	task, err := h.service.RemoveTags(req.Tags, scope)
	if errors.Is(err, ErrNoTags) {
		return echo.NewHTTPError(http.StatusBadRequest, "tags must not be empty")
	}
	if err != nil {
		return startError(err)
	}
	return c.JSON(http.StatusAccepted, task)
}

// ListTasks returns every task snapshot, newest first.
// GET /api/tasks
func (h *Handlers) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Tasks())
}

// GetTask returns one task snapshot.
// GET /api/tasks/:id
func (h *Handlers) GetTask(c echo.Context) error {
	task, err := h.service.Task(c.Param("id"))
	if errors.Is(err, ErrTaskNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

func startError(err error) error {
	if errors.Is(err, ErrRunInProgress) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
