// Package api assembles the HTTP surface: webhook intake, rule and
// history management, bulk runs, configuration, and the WebSocket
// event stream.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/pipi20xx/emby-auto-tags/internal/api/middleware"
	"github.com/pipi20xx/emby-auto-tags/internal/bulk"
	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/ingest"
	"github.com/pipi20xx/emby-auto-tags/internal/logger"
	"github.com/pipi20xx/emby-auto-tags/internal/mediaserver/emby"
	"github.com/pipi20xx/emby-auto-tags/internal/metadata/tmdb"
	"github.com/pipi20xx/emby-auto-tags/internal/pipeline"
	"github.com/pipi20xx/emby-auto-tags/internal/rules"
	"github.com/pipi20xx/emby-auto-tags/internal/scheduler"
	"github.com/pipi20xx/emby-auto-tags/internal/scheduler/tasks"
	"github.com/pipi20xx/emby-auto-tags/internal/websocket"
)

// Server owns the Echo instance and every service behind it.
type Server struct {
	echo      *echo.Echo
	hub       *websocket.Hub
	logger    zerolog.Logger
	appLog    *logger.Logger
	startedAt time.Time

	cfgMu      sync.RWMutex
	cfg        *config.Config
	configPath string

	catalog        *tmdb.Client
	media          *emby.Client
	writer         *emby.Writer
	ruleStore      *rules.Store
	historyService *history.Service
	processor      *pipeline.Processor
	ingest         *ingest.Service
	bulk           *bulk.Service
	scheduler      *scheduler.Scheduler
}

// NewServer wires the full service graph and registers all routes.
// configPath is where PUT /api/config persists changes.
func NewServer(db *sql.DB, hub *websocket.Hub, cfg *config.Config, configPath string, appLog *logger.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		hub:        hub,
		logger:     appLog.With().Str("component", "api").Logger(),
		appLog:     appLog,
		startedAt:  time.Now().UTC(),
		cfg:        cfg,
		configPath: configPath,
	}

	s.catalog = tmdb.NewClient(cfg.TMDB, appLog.Logger)
	s.media = emby.NewClient(cfg.Emby, appLog.Logger)
	s.writer = emby.NewWriter(s.media, appLog.Logger)
	s.ruleStore = rules.NewStore(cfg.Rules.Path, appLog.Logger)
	s.historyService = history.NewService(db, appLog.Logger)
	s.processor = pipeline.NewProcessor(s.catalog, s.media, s.writer, s.ruleStore, s.historyService, hub, appLog.Logger)
	s.ingest = ingest.NewService(s.processor, cfg.Webhook, appLog.Logger)
	s.bulk = bulk.NewService(s.processor, s.media, s.writer, s.historyService, hub, appLog.Logger)

	sched, err := scheduler.New(appLog.Logger)
	if err != nil {
		return nil, err
	}
	s.scheduler = sched

	if err := tasks.RegisterSweepTask(sched, s.bulk, cfg.Scheduler, appLog.Logger); err != nil {
		return nil, err
	}
	if err := tasks.RegisterHistoryPruneTask(sched, s.historyService, cfg.Scheduler.HistoryRetentionDays, appLog.Logger); err != nil {
		return nil, err
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ws", s.hub.HandleWebSocket)

	// Media servers post here directly; the route sits outside /api.
	ingest.NewHandlers(s.ingest).RegisterRoutes(s.echo)

	api := s.echo.Group("/api")
	api.GET("/status", s.getStatus)

	rulesGroup := api.Group("/rules")
	rules.NewHandlers(s.ruleStore).RegisterRoutes(rulesGroup)
	pipeline.NewHandlers(s.processor).RegisterRoutes(rulesGroup)

	history.NewHandlers(s.historyService).RegisterRoutes(api.Group("/history"))

	// Registers /bulk/* and /tasks.
	bulk.NewHandlers(s.bulk).RegisterRoutes(api)

	NewSchedulerHandlers(s.scheduler).RegisterRoutes(api.Group("/scheduler"))
	NewLogsHandlers(s.appLog).RegisterRoutes(api.Group("/logs"))

	cfgGroup := api.Group("/config")
	cfgGroup.GET("", s.getConfig)
	cfgGroup.PUT("", s.updateConfig)

	system := api.Group("/system")
	system.POST("/test/emby", s.testEmby)
	system.POST("/test/tmdb", s.testTMDB)

	reference := api.Group("/reference")
	reference.GET("/genres", s.getGenres)
	reference.GET("/countries", s.getCountries)
}

// Start launches the webhook consumer, the scheduler, and the HTTP
// listener. It blocks until the listener stops.
func (s *Server) Start(address string) error {
	s.ingest.Start()
	s.scheduler.Start()

	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown drains the webhook queue, stops the scheduler, and closes
// the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	s.ingest.Stop()
	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler did not stop cleanly")
	}

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports process identity and the state of both work paths.
// GET /api/status
func (s *Server) getStatus(c echo.Context) error {
	response := map[string]interface{}{
		"version":        config.Version,
		"startedAt":      s.startedAt.Format(time.RFC3339),
		"webhook":        s.ingest.Stats(),
		"embyConfigured": s.media.IsConfigured(),
		"tmdbConfigured": s.catalog.IsConfigured(),
		"wsClients":      s.hub.ClientCount(),
	}

	if id, running := s.bulk.Running(); running {
		response["bulkRunning"] = true
		response["bulkTaskId"] = id
	} else {
		response["bulkRunning"] = false
	}

	return c.JSON(http.StatusOK, response)
}
