package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkarr/linkarr/internal/providers"
)

func (s *Server) handleListArtwork(c echo.Context) error {
	images, err := s.artwork.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, images)
}

type artworkSourceRequest struct {
	OutputKey string `json:"outputKey"`
	Provider  string `json:"provider"`
}

func (s *Server) handleSetArtworkSource(c echo.Context) error {
	var req artworkSourceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid artwork source payload")
	}
	if req.OutputKey == "" {
		return badRequest("outputKey is required")
	}
	switch req.Provider {
	case providers.AniList, providers.TMDB, providers.AniDB:
	default:
		return badRequest("provider must be anilist, tmdb, or anidb")
	}

	user := username(c)
	settings := s.users.Get(user)
	if settings.ApprovedSeriesSources == nil {
		settings.ApprovedSeriesSources = make(map[string]string)
	}
	settings.ApprovedSeriesSources[req.OutputKey] = req.Provider
	if err := s.users.Set(user, settings); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings.ApprovedSeriesSources)
}

type artworkFetchRequest struct {
	OutputKey string `json:"outputKey"`
	Series    string `json:"series"`
}

func (s *Server) handleFetchArtwork(c echo.Context) error {
	var req artworkFetchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid artwork fetch payload")
	}
	if req.Series == "" {
		return badRequest("series is required")
	}
	user := username(c)
	if req.OutputKey == "" {
		settings := s.users.Get(user)
		req.OutputKey = settings.OutputPath(s.cfg)
	}
	if err := s.artwork.FetchOne(c.Request().Context(), user, req.OutputKey, req.Series); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"fetched": true})
}

func (s *Server) handleFetchAllArtwork(c echo.Context) error {
	n := s.artwork.FetchAll(c.Request().Context(), username(c))
	return c.JSON(http.StatusOK, map[string]int{"fetched": n})
}

func (s *Server) handleClearArtworkCache(c echo.Context) error {
	if err := s.artwork.ClearCache(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"cleared": true})
}
