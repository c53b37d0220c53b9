package pipeline

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipi20xx/emby-auto-tags/internal/metadata/tmdb"
	"github.com/pipi20xx/emby-auto-tags/internal/rules"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

// Handlers provides HTTP handlers for pipeline previews.
type Handlers struct {
	processor *Processor
}

// NewHandlers creates a new pipeline handlers instance.
func NewHandlers(processor *Processor) *Handlers {
	return &Handlers{processor: processor}
}

// RegisterRoutes registers pipeline routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/preview", h.Preview)
}

// PreviewRequest asks for a dry run against one provider id.
type PreviewRequest struct {
	TMDBID    string `json:"tmdb_id"`
	MediaType string `json:"media_type"`
	Mode      string `json:"mode"`
}

// Preview runs the rule set against a provider id without writing.
// POST /api/rules/preview
func (h *Handlers) Preview(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preview request")
	}
	if req.TMDBID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tmdb_id is required")
	}

	kind, ok := rules.ParseKind(req.MediaType)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "media_type must be movie, series, or tv")
	}

	mode := tagging.ModeMerge
	if req.Mode != "" {
		parsed, err := tagging.ParseMode(req.Mode)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		mode = parsed
	}

	preview, err := h.processor.PreviewByProvider(c.Request().Context(), req.TMDBID, kind, mode)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "title not found in catalog")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, preview)
}
