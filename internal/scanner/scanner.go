package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/pathutil"
	"github.com/linkarr/linkarr/internal/store"
)

const artifactRetention = 2

var ignoredDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".svn":         true,
	"__pycache__":  true,
}

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".m4v": true, ".mpg": true, ".mpeg": true, ".webm": true,
	".wmv": true, ".flv": true, ".ts": true, ".ogg": true,
	".ogv": true, ".3gp": true, ".3g2": true,
}

// Scanner walks library paths, maintains the incremental scan cache,
// and materializes scan artifacts.
type Scanner struct {
	store  *store.Store
	cache  *enrich.Manager
	events *EventRing
	locks  *lockSet
	logger zerolog.Logger
}

// New creates a scanner.
func New(st *store.Store, cache *enrich.Manager, logger zerolog.Logger) *Scanner {
	return &Scanner{
		store:  st,
		cache:  cache,
		events: NewEventRing(st, logger),
		locks:  newLockSet(),
		logger: logger.With().Str("component", "scanner").Logger(),
	}
}

// Events exposes the hide-event ring.
func (s *Scanner) Events() *EventRing { return s.events }

// AcquireRefresh takes the per-scan refresh lock.
func (s *Scanner) AcquireRefresh(scanID string) (func(), error) {
	return s.locks.acquire("refreshScan:" + scanID)
}

// FullScan walks the whole library, rebuilds the scan cache, parses
// every new file, and materializes an artifact.
func (s *Scanner) FullScan(ctx context.Context, libPath, username string) (*Artifact, error) {
	release, err := s.locks.acquire("scanPath:" + libPath)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	cache := &Cache{
		Files:         make(map[string]FileState),
		Dirs:          make(map[string]int64),
		InitialScanAt: start,
	}

	var found []string
	err = filepath.WalkDir(libPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn().Err(walkErr).Str("path", path).Msg("walk error")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			if info, err := d.Info(); err == nil {
				cache.Dirs[pathutil.Normalize(path)] = info.ModTime().UnixMilli()
			}
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		canonical := pathutil.Normalize(path)
		cache.Files[canonical] = FileState{
			MTime: info.ModTime().UnixMilli(),
			Size:  info.Size(),
			ID:    uuid.NewString(),
		}
		found = append(found, canonical)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.parseNew(found)
	if err := s.store.Set(store.MapScanCache, libPath, cache); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist scan cache")
	}

	artifact := s.materialize(libPath, username, found, "")
	s.logger.Info().Str("library", libPath).Int("files", len(found)).Dur("took", time.Since(start)).Msg("full scan completed")
	return artifact, nil
}

// IncrementalScan revisits only directories whose mtime changed,
// updates the cache, prunes removed files, and materializes an
// artifact from the surviving file set.
func (s *Scanner) IncrementalScan(ctx context.Context, libPath, username string) (*Artifact, error) {
	release, err := s.locks.acquire("scanPath:" + libPath)
	if err != nil {
		return nil, err
	}

	var cache Cache
	ok, err := s.store.Get(store.MapScanCache, libPath, &cache)
	if err != nil {
		release()
		return nil, err
	}
	if !ok || cache.Files == nil {
		// No baseline yet; behave like a full scan. Release first so
		// FullScan can take the same lock.
		release()
		return s.FullScan(ctx, libPath, username)
	}
	defer release()

	diff, err := s.walkIncremental(ctx, libPath, &cache)
	if err != nil {
		return nil, err
	}

	s.parseNew(diff.ToProcess)
	s.dropRemoved(diff.Removed)

	if err := s.store.Set(store.MapScanCache, libPath, diff.Cache); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist scan cache")
	}

	all := make([]string, 0, len(diff.Cache.Files))
	for p := range diff.Cache.Files {
		all = append(all, p)
	}
	sort.Strings(all)

	artifact := s.materialize(libPath, username, all, libPath)
	s.logger.Info().Str("library", libPath).
		Int("new", len(diff.ToProcess)).Int("removed", len(diff.Removed)).
		Msg("incremental scan completed")
	return artifact, nil
}

// ResetCache drops the incremental baseline so the next scan walks
// everything. Admin escape hatch.
func (s *Scanner) ResetCache(libPath string) error {
	return s.store.Delete(store.MapScanCache, libPath)
}

// walkIncremental visits changed directories and diffs their files
// against the cache. Unvisited directories keep their cached entries.
func (s *Scanner) walkIncremental(ctx context.Context, libPath string, prior *Cache) (*Diff, error) {
	next := &Cache{
		Files:         make(map[string]FileState, len(prior.Files)),
		Dirs:          make(map[string]int64, len(prior.Dirs)),
		InitialScanAt: prior.InitialScanAt,
	}
	for k, v := range prior.Files {
		next.Files[k] = v
	}

	changedDirs := make(map[string]bool)
	err := filepath.WalkDir(libPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		canonical := pathutil.Normalize(path)
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mtime := info.ModTime().UnixMilli()
		next.Dirs[canonical] = mtime
		if prior.Dirs[canonical] != mtime {
			changedDirs[canonical] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A directory that vanished is a changed directory too: listing it
	// fails below and its cached files fall out in the removal pass.
	for dir := range prior.Dirs {
		if _, ok := next.Dirs[dir]; !ok {
			changedDirs[dir] = true
		}
	}

	diff := &Diff{Cache: next}
	seen := make(map[string]bool)
	for dir := range changedDirs {
		// ReadDir, not Glob: release directory names are full of glob
		// metacharacters ([Group], [1080p]).
		entries, err := os.ReadDir(filepath.FromSlash(dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			path := filepath.Join(filepath.FromSlash(dir), entry.Name())
			canonical := pathutil.Normalize(path)
			seen[canonical] = true
			info, err := statFile(path)
			if err != nil {
				continue
			}
			state := FileState{MTime: info.mtime, Size: info.size, ID: uuid.NewString()}
			if old, ok := prior.Files[canonical]; ok {
				state.ID = old.ID
				if old.MTime == state.MTime && old.Size == state.Size {
					next.Files[canonical] = old
					continue
				}
			}
			next.Files[canonical] = state
			diff.ToProcess = append(diff.ToProcess, canonical)
		}
	}

	// A file cached under a changed directory but not seen there now has
	// been removed.
	for canonical := range prior.Files {
		dir := pathutil.Normalize(filepath.Dir(filepath.FromSlash(canonical)))
		if changedDirs[dir] && !seen[canonical] {
			delete(next.Files, canonical)
			diff.Removed = append(diff.Removed, canonical)
		}
	}
	return diff, nil
}

// parseNew parses each file's basename and merges it into both caches.
func (s *Scanner) parseNew(paths []string) {
	for _, p := range paths {
		parsed := parser.Parse(filepath.Base(p))
		if err := s.store.Set(store.MapParsed, p, parsed); err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("parsed cache write failed")
		}
		s.cache.Update(p, func(e *enrich.Entry) {
			e.Parsed = &parsed
			if e.Title == "" {
				e.Title = parsed.Title
			}
			if e.Season == nil {
				e.Season = parsed.Season
			}
			if e.Episode == nil {
				e.Episode = parsed.Episode
			}
		})
	}
}

// dropRemoved prunes cache entries for files that vanished. Applied or
// hidden entries survive as audit trail.
func (s *Scanner) dropRemoved(paths []string) {
	for _, p := range paths {
		if err := s.store.Delete(store.MapParsed, p); err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("parsed cache delete failed")
		}
		s.cache.RemoveIfUnapplied(p)
	}
}

// materialize builds and persists an artifact from a file list,
// filtering out applied and hidden entries and pruning old artifacts.
func (s *Scanner) materialize(libPath, username string, paths []string, incrementalPath string) *Artifact {
	now := time.Now()
	entries := s.cache.Entries()

	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		entry := entries[p]
		if entry != nil && (entry.Applied || entry.Hidden) {
			continue
		}
		items = append(items, Item{
			ID:            uuid.NewString(),
			CanonicalPath: p,
			ScannedAt:     now,
			Enrichment:    entry,
		})
	}

	artifact := &Artifact{
		ID:                  uuid.NewString(),
		LibraryID:           libPath,
		Items:               items,
		TotalCount:          len(items),
		GeneratedAt:         now,
		Username:            username,
		IncrementalScanPath: incrementalPath,
	}
	if err := s.store.Set(store.MapScans, artifact.ID, artifact); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist scan artifact")
	}
	s.pruneArtifacts(libPath)
	return artifact
}

// pruneArtifacts keeps only the newest two artifacts per library.
func (s *Scanner) pruneArtifacts(libPath string) {
	artifacts, err := s.Artifacts()
	if err != nil {
		return
	}
	var mine []*Artifact
	for _, a := range artifacts {
		if a.LibraryID == libPath {
			mine = append(mine, a)
		}
	}
	if len(mine) <= artifactRetention {
		return
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].GeneratedAt.After(mine[j].GeneratedAt) })
	for _, old := range mine[artifactRetention:] {
		if err := s.store.Delete(store.MapScans, old.ID); err != nil {
			s.logger.Warn().Err(err).Str("scanId", old.ID).Msg("artifact prune failed")
		}
	}
}

// Artifacts loads every stored scan artifact.
func (s *Scanner) Artifacts() (map[string]*Artifact, error) {
	return store.LoadMap[*Artifact](s.store, store.MapScans)
}

// Artifact loads one artifact by ID.
func (s *Scanner) Artifact(id string) (*Artifact, bool, error) {
	var a Artifact
	ok, err := s.store.Get(store.MapScans, id, &a)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &a, true, nil
}

// UpdateArtifact persists an artifact whose items were re-enriched.
func (s *Scanner) UpdateArtifact(a *Artifact) error {
	return s.store.Set(store.MapScans, a.ID, a)
}

// FilterApplied drops the given paths from every stored artifact and
// pushes a hide event naming the modified scans.
func (s *Scanner) FilterApplied(paths []string) {
	if len(paths) == 0 {
		return
	}
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[p] = true
	}

	artifacts, err := s.Artifacts()
	if err != nil {
		return
	}
	var modified []string
	for id, a := range artifacts {
		kept := a.Items[:0]
		for _, item := range a.Items {
			if !drop[item.CanonicalPath] {
				kept = append(kept, item)
			}
		}
		if len(kept) == a.TotalCount {
			continue
		}
		a.Items = kept
		a.TotalCount = len(kept)
		if err := s.store.Set(store.MapScans, id, a); err != nil {
			s.logger.Warn().Err(err).Str("scanId", id).Msg("artifact filter write failed")
		}
		modified = append(modified, id)
	}

	for _, p := range paths {
		s.events.Push(HideEvent{TS: time.Now(), Path: p, ModifiedScanIDs: modified})
	}
}

// Reinject adds a path back into every stored artifact, used by
// unapprove.
func (s *Scanner) Reinject(path string) {
	artifacts, err := s.Artifacts()
	if err != nil {
		return
	}
	entry := s.cache.Get(path)
	now := time.Now()
	for id, a := range artifacts {
		present := false
		for _, item := range a.Items {
			if item.CanonicalPath == path {
				present = true
				break
			}
		}
		if present {
			continue
		}
		a.Items = append(a.Items, Item{
			ID:            uuid.NewString(),
			CanonicalPath: path,
			ScannedAt:     now,
			Enrichment:    entry,
		})
		a.TotalCount = len(a.Items)
		if err := s.store.Set(store.MapScans, id, a); err != nil {
			s.logger.Warn().Err(err).Str("scanId", id).Msg("artifact reinject write failed")
		}
	}
}

type fileInfo struct {
	mtime int64
	size  int64
}

func statFile(path string) (fileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileInfo{}, err
	}
	return fileInfo{mtime: info.ModTime().UnixMilli(), size: info.Size()}, nil
}
