package apply

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/pathutil"
	"github.com/linkarr/linkarr/internal/scanner"
)

// Plan is one requested hardlink.
type Plan struct {
	ItemID   string `json:"itemId"`
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
}

// Options modify a whole apply batch.
type Options struct {
	DryRun bool
	// OutputFolder re-bases every target under a different root while
	// preserving the series/season layout.
	OutputFolder string
	// ConfiguredRoot is the output root the plans were computed against;
	// needed to compute the relative portion when re-basing.
	ConfiguredRoot string
}

// Plan statuses.
const (
	StatusNoop       = "noop"
	StatusExists     = "exists"
	StatusHardlinked = "hardlinked"
	StatusDryRun     = "dry-run"
	StatusError      = "error"
)

// Result is the per-plan outcome.
type Result struct {
	ItemID   string `json:"itemId"`
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Engine publishes approved renames as hardlinks and reverses them.
type Engine struct {
	cache   *enrich.Manager
	scanner *scanner.Scanner
	logger  zerolog.Logger
}

// New creates an apply engine.
func New(cache *enrich.Manager, sc *scanner.Scanner, logger zerolog.Logger) *Engine {
	return &Engine{
		cache:   cache,
		scanner: sc,
		logger:  logger.With().Str("component", "apply").Logger(),
	}
}

// Apply executes each plan independently and collects per-plan results;
// one failure never aborts the batch. After the batch, applied paths
// are filtered out of every scan artifact and the caches flushed.
func (e *Engine) Apply(plans []Plan, opts Options) []Result {
	results := make([]Result, 0, len(plans))
	var appliedPaths []string

	for _, plan := range plans {
		res := e.applyOne(plan, opts)
		results = append(results, res)
		if res.Status == StatusHardlinked || res.Status == StatusExists {
			appliedPaths = append(appliedPaths, plan.FromPath)
		}
	}

	if !opts.DryRun && len(appliedPaths) > 0 {
		e.scanner.FilterApplied(appliedPaths)
		e.cache.PersistNow()
	}
	return results
}

func (e *Engine) applyOne(plan Plan, opts Options) Result {
	res := Result{ItemID: plan.ItemID, FromPath: plan.FromPath, ToPath: plan.ToPath}

	from := filepath.FromSlash(plan.FromPath)
	if _, err := os.Stat(from); err != nil {
		res.Status = StatusError
		res.Error = "source missing: " + err.Error()
		return res
	}

	to := plan.ToPath
	if opts.OutputFolder != "" && opts.ConfiguredRoot != "" {
		rel := pathutil.LibraryRelative(opts.ConfiguredRoot, plan.ToPath)
		if rel != "" && rel != plan.ToPath {
			to = pathutil.Normalize(filepath.Join(opts.OutputFolder, filepath.FromSlash(rel)))
		}
	}
	res.ToPath = to
	target := filepath.FromSlash(to)

	if pathutil.Normalize(plan.FromPath) == pathutil.Normalize(to) {
		res.Status = StatusNoop
		return res
	}
	if opts.DryRun {
		res.Status = StatusDryRun
		return res
	}

	if err := mkdirRetry(filepath.Dir(target)); err != nil {
		res.Status = StatusError
		res.Error = "mkdir: " + err.Error()
		return res
	}

	if _, err := os.Stat(target); err == nil {
		res.Status = StatusExists
		e.markApplied(plan.FromPath, to)
		return res
	}

	if err := linkRetry(from, target); err != nil {
		res.Status = StatusError
		res.Error = "hardlink: " + err.Error()
		e.logger.Error().Err(err).Str("from", plan.FromPath).Str("to", to).Msg("hardlink failed")
		return res
	}

	res.Status = StatusHardlinked
	e.markApplied(plan.FromPath, to)
	e.logger.Info().Str("from", plan.FromPath).Str("to", to).Msg("hardlinked")
	return res
}

func (e *Engine) markApplied(source, target string) {
	base := filepath.Base(filepath.FromSlash(target))
	renderedName := strings.TrimSuffix(base, filepath.Ext(base))

	e.cache.MarkApplied(source, target, base, renderedName)
	e.cache.SetRendered(pathutil.Normalize(target), enrich.RenderedRow{
		Source:           source,
		RenderedName:     base,
		AppliedTo:        target,
		MetadataFilename: renderedName,
		Provider:         providerOf(e.cache.Get(source)),
		Parsed:           parsedOf(e.cache.Get(source)),
	})
}

func providerOf(entry *enrich.Entry) *enrich.ProviderBlock {
	if entry == nil {
		return nil
	}
	return entry.Provider
}

func parsedOf(entry *enrich.Entry) *parser.Parsed {
	if entry == nil {
		return nil
	}
	return entry.Parsed
}

// mkdirRetry retries once after a short sleep; concurrent applies can
// race creating the same season folder.
func mkdirRetry(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err == nil {
		return nil
	}
	time.Sleep(50 * time.Millisecond)
	return os.MkdirAll(dir, 0o755)
}

// linkRetry attempts the hardlink up to three times. EEXIST counts as
// success: someone else produced the identical target.
func linkRetry(from, to string) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = os.Link(from, to)
		if err == nil || errors.Is(err, os.ErrExist) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return err
}
