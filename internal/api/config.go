package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/scheduler/tasks"
)

// getConfig returns the current configuration with credentials masked.
// GET /api/config
func (s *Server) getConfig(c echo.Context) error {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return c.JSON(http.StatusOK, s.cfg.Redacted())
}

// updateConfig validates, persists, and applies a configuration change.
// Webhook and scheduler settings take effect immediately; server, log,
// and connection settings apply on the next start.
// PUT /api/config
func (s *Server) updateConfig(c echo.Context) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	// Bind over a copy of the current config so omitted fields keep
	// their values.
	updated := *s.cfg
	if err := c.Bind(&updated); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid config payload")
	}

	// Masked credentials round-tripped from GET mean "unchanged".
	updated.Emby.APIKey = preserveSecret(updated.Emby.APIKey, s.cfg.Emby.APIKey)
	updated.TMDB.APIKey = preserveSecret(updated.TMDB.APIKey, s.cfg.TMDB.APIKey)
	updated.Webhook.SecretToken = preserveSecret(updated.Webhook.SecretToken, s.cfg.Webhook.SecretToken)

	if err := updated.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := config.Save(&updated, s.configPath); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist config")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist config")
	}

	*s.cfg = updated

	s.ingest.SetConfig(updated.Webhook)
	if err := tasks.UpdateSweepTask(s.scheduler, s.bulk, updated.Scheduler, s.appLog.Logger); err != nil {
		s.logger.Error().Err(err).Msg("failed to re-register sweep task")
	}
	if err := tasks.UpdateHistoryPruneTask(s.scheduler, s.historyService, updated.Scheduler.HistoryRetentionDays, s.appLog.Logger); err != nil {
		s.logger.Error().Err(err).Msg("failed to re-register history prune task")
	}

	s.logger.Info().Msg("configuration updated")
	return c.JSON(http.StatusOK, s.cfg.Redacted())
}

// preserveSecret keeps the current credential when the incoming value is
// empty or still masked.
func preserveSecret(incoming, current string) string {
	if incoming == "" || strings.Contains(incoming, "*") {
		return current
	}
	return incoming
}
