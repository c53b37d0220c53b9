package ingest

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// payloads are small JSON documents; anything bigger is not a webhook
const maxPayloadBytes = 4 << 20

// Handlers provides the webhook intake endpoint.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new ingest handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the webhook route on the Echo instance. The
// route sits outside the API group; media servers call it directly.
func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook/:token", h.Receive)
}

// Receive accepts a webhook notification. The response only says
// whether the payload was accepted; processing happens asynchronously.
// POST /webhook/:token
func (h *Handlers) Receive(c echo.Context) error {
	payload, err := readPayload(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable payload")
	}

	queued, err := h.service.Enqueue(c.Param("token"), payload)
	switch {
	case errors.Is(err, ErrDisabled):
		return echo.NewHTTPError(http.StatusForbidden, "webhook receiver is disabled")
	case errors.Is(err, ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if !queued {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "received",
			"message": "automation is disabled, notification logged only",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

// readPayload extracts the notification body. Some server webhook
// plugins POST multipart form data with the JSON under a "data" field;
// everything else is treated as a raw JSON body.
func readPayload(c echo.Context) ([]byte, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		if v := c.FormValue("data"); v != "" {
			return []byte(v), nil
		}
	}
	return io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes))
}
