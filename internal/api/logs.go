package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/pipi20xx/emby-auto-tags/internal/logger"
)

// LogsProvider exposes the live log stream and the log file location.
// *logger.Logger satisfies it.
type LogsProvider interface {
	Stream() *logger.Stream
	FilePath() string
}

// LogsHandlers serves recent log entries and the log file download.
type LogsHandlers struct {
	provider LogsProvider
}

// NewLogsHandlers creates a logs handlers instance.
func NewLogsHandlers(provider LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Recent)
	g.GET("/download", h.Download)
}

// Recent returns buffered log entries, oldest first.
// GET /api/logs
func (h *LogsHandlers) Recent(c echo.Context) error {
	entries := h.provider.Stream().Recent()
	if entries == nil {
		entries = []logger.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Download serves the current log file.
// GET /api/logs/download
func (h *LogsHandlers) Download(c echo.Context) error {
	path := h.provider.FilePath()
	if path == "" {
		return echo.NewHTTPError(http.StatusNotFound, "file logging is not enabled")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(path, "embytags.log")
}
