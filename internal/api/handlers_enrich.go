package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/pathutil"
	"github.com/linkarr/linkarr/internal/render"
	"github.com/linkarr/linkarr/internal/resolver"
)

type enrichRequest struct {
	Path               string `json:"path"`
	Force              bool   `json:"force"`
	ForceHash          bool   `json:"forceHash"`
	SkipAnimeProviders bool   `json:"skipAnimeProviders"`
}

func (s *Server) handleEnrich(c echo.Context) error {
	var req enrichRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid enrich request")
	}
	if req.Path == "" {
		return badRequest("path is required")
	}

	user := username(c)
	settings := s.users.Get(user)
	entry, err := s.resolver.Resolve(c.Request().Context(), resolver.Request{
		CanonicalPath:      pathutil.Normalize(req.Path),
		Username:           user,
		LibraryRoot:        settings.InputPath(s.cfg),
		ProviderOrder:      settings.EffectiveProviderOrder(),
		Force:              req.Force,
		ForceHash:          req.ForceHash,
		SkipAnimeProviders: req.SkipAnimeProviders,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

type enrichBulkRequest struct {
	Paths              []string `json:"paths"`
	Force              bool     `json:"force"`
	SkipAnimeProviders bool     `json:"skipAnimeProviders"`
}

type enrichBulkResult struct {
	Path  string `json:"path"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// handleEnrichBulk resolves paths sequentially; provider pacing makes
// parallel lookups pointless and sequential keeps failures independent.
func (s *Server) handleEnrichBulk(c echo.Context) error {
	var req enrichBulkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid bulk enrich request")
	}
	if len(req.Paths) == 0 {
		return badRequest("paths is required")
	}

	user := username(c)
	settings := s.users.Get(user)
	ctx := c.Request().Context()

	results := make([]enrichBulkResult, 0, len(req.Paths))
	for _, p := range req.Paths {
		_, err := s.resolver.Resolve(ctx, resolver.Request{
			CanonicalPath:      pathutil.Normalize(p),
			Username:           user,
			LibraryRoot:        settings.InputPath(s.cfg),
			ProviderOrder:      settings.EffectiveProviderOrder(),
			Force:              req.Force,
			SkipAnimeProviders: req.SkipAnimeProviders,
		})
		res := enrichBulkResult{Path: p, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return c.JSON(http.StatusOK, results)
}

type enrichCustomRequest struct {
	Path         string `json:"path"`
	Title        string `json:"title"`
	Year         string `json:"year"`
	Season       *int   `json:"season"`
	Episode      *int   `json:"episode"`
	EpisodeTitle string `json:"episodeTitle"`
	IsMovie      bool   `json:"isMovie"`
}

// handleEnrichCustom writes user-supplied metadata over an entry,
// bypassing the providers entirely.
func (s *Server) handleEnrichCustom(c echo.Context) error {
	var req enrichCustomRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid custom enrich request")
	}
	if req.Path == "" || req.Title == "" {
		return badRequest("path and title are required")
	}

	path := pathutil.Normalize(req.Path)
	entry := s.cache.Update(path, func(e *enrich.Entry) {
		e.Title = req.Title
		e.SeriesTitle = req.Title
		e.SeriesTitleExact = req.Title
		e.Year = req.Year
		e.Season = req.Season
		e.Episode = req.Episode
		e.EpisodeTitle = req.EpisodeTitle
		e.EpisodeCode = ""
		isMovie := req.IsMovie
		e.IsMovie = &isMovie

		block := &enrich.ProviderBlock{
			Provider:     "custom",
			Title:        req.Title,
			Year:         req.Year,
			Season:       req.Season,
			Episode:      req.Episode,
			EpisodeTitle: req.EpisodeTitle,
			Matched:      true,
			Source:       "custom",
		}
		e.Provider = block
		block.RenderedName = render.ProviderName(e)
	})
	s.cache.ClearFailure(path)
	return c.JSON(http.StatusOK, entry)
}

func (s *Server) handleSweep(c echo.Context) error {
	removed := s.cache.Sweep()
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleListApplied(c echo.Context) error {
	out := make(map[string]*enrich.Entry)
	for path, entry := range s.cache.Entries() {
		if entry.Applied || entry.Hidden {
			out[path] = entry
		}
	}
	return c.JSON(http.StatusOK, out)
}

// handleListDuplicates groups unapplied entries whose rendered names
// collide, which would hardlink onto the same target.
func (s *Server) handleListDuplicates(c echo.Context) error {
	byName := make(map[string][]string)
	for path, entry := range s.cache.Entries() {
		if entry.Applied || entry.Provider == nil || entry.Provider.RenderedName == "" {
			continue
		}
		byName[entry.Provider.RenderedName] = append(byName[entry.Provider.RenderedName], path)
	}
	dupes := make(map[string][]string)
	for name, paths := range byName {
		if len(paths) > 1 {
			dupes[name] = paths
		}
	}
	return c.JSON(http.StatusOK, dupes)
}
