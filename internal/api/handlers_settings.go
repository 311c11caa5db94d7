package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/pathutil"
	"github.com/linkarr/linkarr/internal/resolver"
)

func (s *Server) handleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.users.Get(username(c)))
}

func (s *Server) handlePutSettings(c echo.Context) error {
	var settings config.UserSettings
	if err := c.Bind(&settings); err != nil {
		return badRequest("invalid settings payload")
	}
	if err := s.users.Set(username(c), settings); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleGetManualSeriesIDs(c echo.Context) error {
	title := c.QueryParam("title")
	if title == "" {
		return badRequest("title is required")
	}
	ids, ok := s.resolver.ManualSeriesIDs(title)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no manual IDs for title")
	}
	return c.JSON(http.StatusOK, ids)
}

type manualSeriesIDsRequest struct {
	Title string `json:"title"`
	resolver.SeriesIDs
}

func (s *Server) handleSetManualSeriesIDs(c echo.Context) error {
	var req manualSeriesIDsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid manual IDs payload")
	}
	if req.Title == "" {
		return badRequest("title is required")
	}
	if err := s.resolver.SetManualSeriesIDs(req.Title, req.SeriesIDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, req.SeriesIDs)
}

func (s *Server) handleGetManualEpisodeID(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return badRequest("path is required")
	}
	ids, ok := s.resolver.ManualEpisodeID(pathutil.Normalize(path))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no manual episode ID for path")
	}
	return c.JSON(http.StatusOK, ids)
}

type manualEpisodeIDRequest struct {
	Path string `json:"path"`
	resolver.EpisodeIDs
}

func (s *Server) handleSetManualEpisodeID(c echo.Context) error {
	var req manualEpisodeIDRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid manual episode ID payload")
	}
	if req.Path == "" {
		return badRequest("path is required")
	}
	if err := s.resolver.SetManualEpisodeID(pathutil.Normalize(req.Path), req.EpisodeIDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, req.EpisodeIDs)
}
