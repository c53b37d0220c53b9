package rules

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for rule management.
type Handlers struct {
	store *Store
}

// NewHandlers creates rule handlers.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers rule endpoints on the given group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.list)
	g.PUT("", h.replace)
}

func (h *Handlers) list(c echo.Context) error {
	ruleSet, err := h.store.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, document{Rules: ruleSet})
}

func (h *Handlers) replace(c echo.Context) error {
	var doc document
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rules document")
	}

	if err := h.store.Save(doc.Rules); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status": "saved",
		"count":  len(doc.Rules),
	})
}
