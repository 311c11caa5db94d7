package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/apply"
	"github.com/linkarr/linkarr/internal/artwork"
	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/render"
	"github.com/linkarr/linkarr/internal/resolver"
	"github.com/linkarr/linkarr/internal/scanner"
	"github.com/linkarr/linkarr/internal/store"
	"github.com/linkarr/linkarr/internal/users"
)

// Server handles HTTP requests for the Linkarr API.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger zerolog.Logger

	store    *store.Store
	cache    *enrich.Manager
	users    *users.Service
	scanner  *scanner.Scanner
	resolver *resolver.Resolver
	applier  *apply.Engine
	artwork  *artwork.Worker
	aliases  render.Aliases
}

// NewServer wires the service layer behind an echo instance.
func NewServer(cfg *config.Config, st *store.Store, cache *enrich.Manager,
	us *users.Service, sc *scanner.Scanner, res *resolver.Resolver,
	ap *apply.Engine, aw *artwork.Worker, aliases render.Aliases,
	logger zerolog.Logger) *Server {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		cfg:      cfg,
		logger:   logger.With().Str("component", "api").Logger(),
		store:    st,
		cache:    cache,
		users:    us,
		scanner:  sc,
		resolver: res,
		applier:  ap,
		artwork:  aw,
		aliases:  aliases,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.BodyLimit("2M"))
	s.echo.Use(middleware.CORS())

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
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.Gzip())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api/v1")

	api.POST("/scan", s.handleScan)
	api.POST("/scan/reset", s.handleScanReset)
	api.GET("/scans", s.handleListScans)
	api.GET("/scans/:id", s.handleGetScan)
	api.POST("/scans/:id/refresh", s.handleRefreshScan)

	api.POST("/enrich", s.handleEnrich)
	api.POST("/enrich/bulk", s.handleEnrichBulk)
	api.POST("/enrich/custom", s.handleEnrichCustom)
	api.POST("/sweep", s.handleSweep)

	api.POST("/preview", s.handlePreview)
	api.POST("/apply", s.handleApply)
	api.POST("/unapprove", s.handleUnapprove)

	api.GET("/entries/applied", s.handleListApplied)
	api.GET("/entries/duplicates", s.handleListDuplicates)
	api.GET("/hide-events", s.handleHideEvents)

	api.GET("/manual-ids/series", s.handleGetManualSeriesIDs)
	api.PUT("/manual-ids/series", s.handleSetManualSeriesIDs)
	api.GET("/manual-ids/episode", s.handleGetManualEpisodeID)
	api.PUT("/manual-ids/episode", s.handleSetManualEpisodeID)

	api.GET("/artwork", s.handleListArtwork)
	api.PUT("/artwork/source", s.handleSetArtworkSource)
	api.POST("/artwork/fetch", s.handleFetchArtwork)
	api.POST("/artwork/fetch-all", s.handleFetchAllArtwork)
	api.DELETE("/artwork/cache", s.handleClearArtworkCache)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handlePutSettings)
}

// Start begins listening on the given address.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting API server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// username extracts the caller identity from the X-Username header; an
// absent header selects the shared default profile.
func username(c echo.Context) string {
	return c.Request().Header.Get("X-Username")
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
