package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/linkarr/linkarr/internal/pathutil"
	"github.com/linkarr/linkarr/internal/resolver"
	"github.com/linkarr/linkarr/internal/scanner"
)

type scanRequest struct {
	LibPath string `json:"libPath"`
	Full    bool   `json:"full"`
}

func (s *Server) handleScan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid scan request")
	}
	user := username(c)
	settings := s.users.Get(user)
	libPath := req.LibPath
	if libPath == "" {
		libPath = settings.InputPath(s.cfg)
	}
	if libPath == "" {
		return badRequest("no library path configured")
	}
	libPath = pathutil.Normalize(libPath)

	ctx := c.Request().Context()
	var (
		artifact *scanner.Artifact
		err      error
	)
	if req.Full {
		artifact, err = s.scanner.FullScan(ctx, libPath, user)
	} else {
		artifact, err = s.scanner.IncrementalScan(ctx, libPath, user)
	}
	if err != nil {
		if errors.Is(err, scanner.ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "scan already running for this library")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, artifact)
}

func (s *Server) handleScanReset(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid reset request")
	}
	settings := s.users.Get(username(c))
	libPath := req.LibPath
	if libPath == "" {
		libPath = settings.InputPath(s.cfg)
	}
	if libPath == "" {
		return badRequest("no library path configured")
	}
	if err := s.scanner.ResetCache(pathutil.Normalize(libPath)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"reset": true})
}

func (s *Server) handleListScans(c echo.Context) error {
	artifacts, err := s.scanner.Artifacts()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, artifacts)
}

func (s *Server) handleGetScan(c echo.Context) error {
	artifact, ok, err := s.scanner.Artifact(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "scan not found")
	}
	return c.JSON(http.StatusOK, artifact)
}

type refreshScanRequest struct {
	Force     bool `json:"force"`
	ForceHash bool `json:"forceHash"`
}

// handleRefreshScan re-enriches every item of one artifact under the
// per-scan refresh lock, then persists the updated artifact.
func (s *Server) handleRefreshScan(c echo.Context) error {
	scanID := c.Param("id")
	var req refreshScanRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid refresh request")
	}

	release, err := s.scanner.AcquireRefresh(scanID)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "refresh already running for this scan")
	}
	defer release()

	artifact, ok, err := s.scanner.Artifact(scanID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "scan not found")
	}

	user := username(c)
	settings := s.users.Get(user)
	ctx := c.Request().Context()

	resolved := 0
	for i := range artifact.Items {
		entry, err := s.resolver.Resolve(ctx, resolver.Request{
			CanonicalPath: artifact.Items[i].CanonicalPath,
			Username:      user,
			LibraryRoot:   settings.InputPath(s.cfg),
			ProviderOrder: settings.EffectiveProviderOrder(),
			Force:         req.Force,
			ForceHash:     req.ForceHash,
		})
		if err != nil {
			continue
		}
		artifact.Items[i].Enrichment = entry
		resolved++
	}

	if err := s.scanner.UpdateArtifact(artifact); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"scanId":   scanID,
		"total":    len(artifact.Items),
		"resolved": resolved,
	})
}

// handleHideEvents returns hide events newer than the since query
// parameter (unix milliseconds). Without a parameter every retained
// event is returned.
func (s *Server) handleHideEvents(c echo.Context) error {
	var since time.Time
	if raw := c.QueryParam("since"); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest("since must be unix milliseconds")
		}
		since = time.UnixMilli(millis)
	}
	return c.JSON(http.StatusOK, s.scanner.Events().Since(since))
}
