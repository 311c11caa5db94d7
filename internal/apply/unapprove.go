package apply

import (
	"os"
	"path/filepath"
	"sort"
)

// UnapproveResult is the per-entry outcome of an unapprove.
type UnapproveResult struct {
	Path      string `json:"path"`
	MovedBack bool   `json:"movedBack,omitempty"`
	Unlinked  bool   `json:"unlinked,omitempty"`
	Error     string `json:"error,omitempty"`
}

const defaultUnapproveCount = 10

// Unapprove reverses applied entries. With explicit paths it acts on
// those; otherwise it selects the count most recently applied entries.
// deleteHardlinks controls whether surviving targets are unlinked.
func (e *Engine) Unapprove(paths []string, count int, deleteHardlinks bool) []UnapproveResult {
	if len(paths) == 0 {
		paths = e.recentlyApplied(count)
	}

	results := make([]UnapproveResult, 0, len(paths))
	for _, p := range paths {
		results = append(results, e.unapproveOne(p, deleteHardlinks))
	}
	e.cache.PersistNow()
	return results
}

// recentlyApplied returns the canonical paths of the most recently
// applied entries, newest first.
func (e *Engine) recentlyApplied(count int) []string {
	if count <= 0 {
		count = defaultUnapproveCount
	}

	type applied struct {
		path string
		at   int64
	}
	var all []applied
	for path, entry := range e.cache.Entries() {
		if entry.Applied && entry.AppliedAt != nil {
			all = append(all, applied{path, entry.AppliedAt.UnixMilli()})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at > all[j].at })
	if len(all) > count {
		all = all[:count]
	}
	out := make([]string, len(all))
	for i, a := range all {
		out[i] = a.path
	}
	return out
}

func (e *Engine) unapproveOne(path string, deleteHardlinks bool) UnapproveResult {
	res := UnapproveResult{Path: path}
	entry := e.cache.Get(path)
	if entry == nil {
		res.Error = "no cache entry"
		return res
	}

	source := filepath.FromSlash(path)
	_, sourceErr := os.Stat(source)

	for _, target := range entry.AppliedTo {
		t := filepath.FromSlash(target)
		if sourceErr != nil {
			// Source gone means the apply was a rename; move the target
			// back into place.
			if err := mkdirRetry(filepath.Dir(source)); err != nil {
				res.Error = "mkdir: " + err.Error()
				continue
			}
			if err := os.Rename(t, source); err != nil {
				res.Error = "move back: " + err.Error()
				e.logger.Error().Err(err).Str("target", target).Str("source", path).Msg("move back failed")
				continue
			}
			res.MovedBack = true
			sourceErr = nil
		} else if deleteHardlinks {
			if err := os.Remove(t); err != nil && !os.IsNotExist(err) {
				res.Error = "unlink: " + err.Error()
				e.logger.Warn().Err(err).Str("target", target).Msg("unlink failed")
			} else {
				res.Unlinked = true
			}
		}
		e.cache.DeleteRendered(target)
	}

	e.cache.ClearApplied(path)
	e.scanner.Reinject(path)
	e.logger.Info().Str("path", path).Bool("movedBack", res.MovedBack).Bool("unlinked", res.Unlinked).Msg("unapproved")
	return res
}
