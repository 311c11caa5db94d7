package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkarr/linkarr/internal/apply"
	"github.com/linkarr/linkarr/internal/pathutil"
	"github.com/linkarr/linkarr/internal/render"
)

type previewRequest struct {
	Paths              []string `json:"paths"`
	Template           string   `json:"template"`
	OutputPath         string   `json:"outputPath"`
	UseFilenameAsTitle bool     `json:"useFilenameAsTitle"`
}

type previewPlan struct {
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
	Error    string `json:"error,omitempty"`
}

// handlePreview renders the target path for each entry without touching
// the filesystem.
func (s *Server) handlePreview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid preview request")
	}
	if len(req.Paths) == 0 {
		return badRequest("paths is required")
	}

	settings := s.users.Get(username(c))
	template := req.Template
	if template == "" {
		template = settings.EffectiveTemplate()
	}
	outputRoot := req.OutputPath
	if outputRoot == "" {
		outputRoot = settings.OutputPath(s.cfg)
	}
	if outputRoot == "" {
		return badRequest("no output path configured")
	}

	plans := make([]previewPlan, 0, len(req.Paths))
	for _, p := range req.Paths {
		path := pathutil.Normalize(p)
		entry := s.cache.Get(path)
		if entry == nil {
			plans = append(plans, previewPlan{FromPath: p, Error: "no cache entry"})
			continue
		}
		if req.UseFilenameAsTitle && entry.Parsed != nil && entry.Parsed.Title != "" {
			entry.SeriesTitle = entry.Parsed.Title
			entry.SeriesTitleEnglish = ""
			entry.SeriesTitleRomaji = ""
			entry.Title = entry.Parsed.Title
		}
		to := render.TargetPath(outputRoot, entry, template, settings.ClientOS, s.aliases, path)
		plans = append(plans, previewPlan{FromPath: p, ToPath: to})
	}
	return c.JSON(http.StatusOK, plans)
}

type applyRequest struct {
	Plans        []apply.Plan `json:"plans"`
	DryRun       bool         `json:"dryRun"`
	OutputFolder string       `json:"outputFolder"`
}

func (s *Server) handleApply(c echo.Context) error {
	var req applyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid apply request")
	}
	if len(req.Plans) == 0 {
		return badRequest("plans is required")
	}

	settings := s.users.Get(username(c))
	results := s.applier.Apply(req.Plans, apply.Options{
		DryRun:         req.DryRun,
		OutputFolder:   req.OutputFolder,
		ConfiguredRoot: settings.OutputPath(s.cfg),
	})
	return c.JSON(http.StatusOK, results)
}

type unapproveRequest struct {
	Paths []string `json:"paths"`
	Count int      `json:"count"`
}

func (s *Server) handleUnapprove(c echo.Context) error {
	var req unapproveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid unapprove request")
	}
	settings := s.users.Get(username(c))
	results := s.applier.Unapprove(req.Paths, req.Count, settings.DeleteHardlinks())
	return c.JSON(http.StatusOK, results)
}
