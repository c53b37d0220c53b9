package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/mediaserver/emby"
	"github.com/pipi20xx/emby-auto-tags/internal/metadata/tmdb"
)

// testEmby verifies media server connectivity. An empty body tests the
// saved settings; a body with server_url/api_key tests those instead, so
// credentials can be checked before saving.
// POST /api/system/test/emby
func (s *Server) testEmby(c echo.Context) error {
	s.cfgMu.RLock()
	cfg := s.cfg.Emby
	s.cfgMu.RUnlock()

	var override config.EmbyConfig
	if err := c.Bind(&override); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if override.ServerURL != "" {
		cfg.ServerURL = override.ServerURL
	}
	if key := preserveSecret(override.APIKey, cfg.APIKey); key != "" {
		cfg.APIKey = key
	}
	if override.UserID != "" {
		cfg.UserID = override.UserID
	}

	client := emby.NewClient(cfg, s.appLog.Logger)
	if !client.IsConfigured() {
		return echo.NewHTTPError(http.StatusBadRequest, "media server is not configured")
	}

	info, err := client.Test(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":     "ok",
		"serverName": info.ServerName,
		"version":    info.Version,
	})
}

// testTMDB verifies catalog connectivity, optionally with an unsaved
// api key.
// POST /api/system/test/tmdb
func (s *Server) testTMDB(c echo.Context) error {
	s.cfgMu.RLock()
	cfg := s.cfg.TMDB
	s.cfgMu.RUnlock()

	var override config.TMDBConfig
	if err := c.Bind(&override); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if override.BaseURL != "" {
		cfg.BaseURL = override.BaseURL
	}
	if key := preserveSecret(override.APIKey, cfg.APIKey); key != "" {
		cfg.APIKey = key
	}

	client := tmdb.NewClient(cfg, s.appLog.Logger)
	if err := client.Test(c.Request().Context()); err != nil {
		if errors.Is(err, tmdb.ErrAPIKeyMissing) {
			return echo.NewHTTPError(http.StatusBadRequest, "catalog api key is not configured")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type genreEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type countryEntry struct {
	Language string `json:"language"`
	Country  string `json:"country"`
	Name     string `json:"name,omitempty"`
}

// getGenres lists the known catalog genre ids for rule authoring.
// GET /api/reference/genres
func (s *Server) getGenres(c echo.Context) error {
	genres := make([]genreEntry, 0, len(tmdb.GenreNames))
	for id, name := range tmdb.GenreNames {
		genres = append(genres, genreEntry{ID: id, Name: name})
	}
	sort.Slice(genres, func(i, j int) bool { return genres[i].ID < genres[j].ID })
	return c.JSON(http.StatusOK, genres)
}

// getCountries lists the original-language to country fallback map.
// GET /api/reference/countries
func (s *Server) getCountries(c echo.Context) error {
	countries := make([]countryEntry, 0, len(tmdb.LanguageCountries))
	for lang, country := range tmdb.LanguageCountries {
		countries = append(countries, countryEntry{
			Language: lang,
			Country:  country,
			Name:     tmdb.CountryNames[country],
		})
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].Language < countries[j].Language })
	return c.JSON(http.StatusOK, countries)
}
