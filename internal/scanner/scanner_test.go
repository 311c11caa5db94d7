package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/testutil"
)

func newTestScanner(t *testing.T) (*Scanner, *enrich.Manager) {
	t.Helper()
	st := testutil.NewTestStore(t)
	cache, err := enrich.NewManager(st, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return New(st, cache, testutil.NewTestLogger(t)), cache
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

func TestFullScan(t *testing.T) {
	sc, cache := newTestScanner(t)
	lib := t.TempDir()

	writeFile(t, filepath.Join(lib, "Show", "Show S01E01.mkv"))
	writeFile(t, filepath.Join(lib, "Show", "Show S01E02.mkv"))
	writeFile(t, filepath.Join(lib, "Show", "cover.jpg"))
	writeFile(t, filepath.Join(lib, ".git", "ignored.mkv"))
	writeFile(t, filepath.Join(lib, "node_modules", "ignored.mkv"))

	artifact, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	assert.Equal(t, 2, artifact.TotalCount)
	assert.Equal(t, "alice", artifact.Username)
	assert.NotEmpty(t, artifact.ID)
	for _, item := range artifact.Items {
		assert.NotEmpty(t, item.ID)
		require.NotNil(t, item.Enrichment)
		assert.NotNil(t, item.Enrichment.Parsed)
	}

	// Parsed results land in the enrichment cache.
	assert.Equal(t, 2, cache.Len())
}

func TestFullScanConflict(t *testing.T) {
	sc, _ := newTestScanner(t)
	lib := t.TempDir()

	release, err := sc.locks.acquire("scanPath:" + lib)
	require.NoError(t, err)
	defer release()

	_, err = sc.FullScan(context.Background(), lib, "alice")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestIncrementalScanWithoutBaselineFallsBackToFull(t *testing.T) {
	sc, _ := newTestScanner(t)
	lib := t.TempDir()
	writeFile(t, filepath.Join(lib, "Show S01E01.mkv"))

	artifact, err := sc.IncrementalScan(context.Background(), lib, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.TotalCount)
}

func TestIncrementalScanDetectsAddAndRemove(t *testing.T) {
	sc, cache := newTestScanner(t)
	lib := t.TempDir()

	keep := filepath.Join(lib, "Show", "Show S01E01.mkv")
	gone := filepath.Join(lib, "Show", "Show S01E02.mkv")
	writeFile(t, keep)
	writeFile(t, gone)

	_, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))
	added := filepath.Join(lib, "Show", "Show S01E03.mkv")
	writeFile(t, added)
	// Directory mtime granularity can swallow same-instant changes.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Dir(added), future, future))

	artifact, err := sc.IncrementalScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	paths := make(map[string]bool)
	for _, item := range artifact.Items {
		paths[filepath.Base(item.CanonicalPath)] = true
	}
	assert.True(t, paths["Show S01E01.mkv"])
	assert.True(t, paths["Show S01E03.mkv"])
	assert.False(t, paths["Show S01E02.mkv"])

	// The removed file's unapplied cache entry is dropped.
	assert.Nil(t, cache.Get(filepath.ToSlash(gone)))
}

func TestIncrementalScanBracketedDirNames(t *testing.T) {
	sc, cache := newTestScanner(t)
	lib := t.TempDir()

	dir := filepath.Join(lib, "[Judas] Show (Season 1) [1080p][HEVC x265 10bit]")
	first := filepath.Join(dir, "Show S01E01.mkv")
	writeFile(t, first)

	_, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	added := filepath.Join(dir, "Show S01E02.mkv")
	writeFile(t, added)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(dir, future, future))

	artifact, err := sc.IncrementalScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	paths := make(map[string]bool)
	for _, item := range artifact.Items {
		paths[filepath.Base(item.CanonicalPath)] = true
	}
	assert.True(t, paths["Show S01E01.mkv"], "existing file must survive a bracketed-dir rescan")
	assert.True(t, paths["Show S01E02.mkv"], "new file in a bracketed dir must be picked up")
	assert.NotNil(t, cache.Get(filepath.ToSlash(first)))
}

func TestIncrementalScanDetectsDeletedDirectory(t *testing.T) {
	sc, cache := newTestScanner(t)
	lib := t.TempDir()

	sub := filepath.Join(lib, "Show")
	gone := filepath.Join(sub, "Show S01E01.mkv")
	writeFile(t, gone)

	_, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(sub))

	artifact, err := sc.IncrementalScan(context.Background(), lib, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, artifact.TotalCount, "files under a deleted directory must drop out")
	assert.Nil(t, cache.Get(filepath.ToSlash(gone)))
}

func TestMaterializeFiltersAppliedAndHidden(t *testing.T) {
	sc, cache := newTestScanner(t)
	lib := t.TempDir()

	visible := filepath.Join(lib, "Show S01E01.mkv")
	applied := filepath.Join(lib, "Show S01E02.mkv")
	writeFile(t, visible)
	writeFile(t, applied)

	cache.MarkApplied(filepath.ToSlash(applied), "/out/file.mkv", "file.mkv", "file")

	artifact, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, artifact.TotalCount)
	assert.Equal(t, filepath.ToSlash(visible), artifact.Items[0].CanonicalPath)
}

func TestArtifactRetention(t *testing.T) {
	sc, _ := newTestScanner(t)
	lib := t.TempDir()
	writeFile(t, filepath.Join(lib, "Show S01E01.mkv"))

	for i := 0; i < 4; i++ {
		_, err := sc.FullScan(context.Background(), lib, "alice")
		require.NoError(t, err)
	}

	artifacts, err := sc.Artifacts()
	require.NoError(t, err)
	assert.Len(t, artifacts, artifactRetention)
}

func TestFilterAppliedAndReinject(t *testing.T) {
	sc, _ := newTestScanner(t)
	lib := t.TempDir()

	target := filepath.Join(lib, "Show S01E01.mkv")
	writeFile(t, target)
	writeFile(t, filepath.Join(lib, "Show S01E02.mkv"))

	artifact, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, artifact.TotalCount)

	canonical := filepath.ToSlash(target)
	before := time.Now().Add(-time.Second)
	sc.FilterApplied([]string{canonical})

	got, ok, err := sc.Artifact(artifact.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.TotalCount)

	events := sc.Events().Since(before)
	require.NotEmpty(t, events)
	assert.Equal(t, canonical, events[len(events)-1].Path)
	assert.Contains(t, events[len(events)-1].ModifiedScanIDs, artifact.ID)

	sc.Reinject(canonical)
	got, _, err = sc.Artifact(artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalCount)
}

func TestResetCache(t *testing.T) {
	sc, _ := newTestScanner(t)
	lib := t.TempDir()
	writeFile(t, filepath.Join(lib, "Show S01E01.mkv"))

	_, err := sc.FullScan(context.Background(), lib, "alice")
	require.NoError(t, err)
	require.NoError(t, sc.ResetCache(lib))

	// Without a baseline the next incremental is a full walk again.
	artifact, err := sc.IncrementalScan(context.Background(), lib, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.TotalCount)
}

func TestEventRingCapsAtLimit(t *testing.T) {
	st := testutil.NewTestStore(t)
	ring := NewEventRing(st, testutil.NewTestLogger(t))

	for i := 0; i < eventRingMax+50; i++ {
		ring.Push(HideEvent{TS: time.Now(), Path: "/p"})
	}
	events := ring.Since(time.Time{})
	assert.Len(t, events, eventRingMax)
}
