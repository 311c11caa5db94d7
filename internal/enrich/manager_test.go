package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkarr/linkarr/internal/testutil"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testutil.NewTestStore(t), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return m
}

func TestUpdateAndGet(t *testing.T) {
	m := newTestManager(t)

	m.Update("/media/show/ep1.mkv", func(e *Entry) {
		e.SeriesTitle = "Show"
		e.Year = "2020"
	})

	got := m.Get("/media/show/ep1.mkv")
	require.NotNil(t, got)
	assert.Equal(t, "Show", got.SeriesTitle)
	assert.Equal(t, "2020", got.Year)
	assert.False(t, got.CachedAt.IsZero())

	assert.Nil(t, m.Get("/media/other.mkv"))
	assert.Equal(t, 1, m.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	m := newTestManager(t)

	m.Update("/k", func(e *Entry) { e.SeriesTitle = "Show" })
	got := m.Get("/k")
	got.SeriesTitle = "Mutated"

	assert.Equal(t, "Show", m.Get("/k").SeriesTitle)
}

func TestUpdatePreservesAppliedFlags(t *testing.T) {
	m := newTestManager(t)

	m.Update("/k", func(e *Entry) { e.SeriesTitle = "Show" })
	m.MarkApplied("/k", "/out/Show/file.mkv", "file.mkv", "file")

	// A re-enrichment must not reset the applied state.
	m.Update("/k", func(e *Entry) {
		e.Applied = false
		e.Hidden = false
		e.AppliedTo = nil
		e.SeriesTitle = "Show Renamed"
	})

	got := m.Get("/k")
	assert.True(t, got.Applied)
	assert.True(t, got.Hidden)
	require.NotNil(t, got.AppliedAt)
	assert.Equal(t, PathList{"/out/Show/file.mkv"}, got.AppliedTo)
	assert.Equal(t, "file.mkv", got.RenderedName)
	assert.Equal(t, "Show Renamed", got.SeriesTitle)
}

func TestMatchedProviderClearsFailure(t *testing.T) {
	m := newTestManager(t)

	m.RecordFailure("/k", "anilist", FailNoMatch, "", "")
	require.NotNil(t, m.Get("/k").ProviderFailure)

	m.Update("/k", func(e *Entry) {
		e.Provider = &ProviderBlock{Provider: "anilist", Matched: true, RenderedName: "x"}
	})
	assert.Nil(t, m.Get("/k").ProviderFailure)
}

func TestFailureLifecycle(t *testing.T) {
	m := newTestManager(t)

	m.RecordFailure("/k", "anilist", FailNoMatch, "", "no results")
	m.RecordFailure("/k", "anilist", FailNoMatch, "", "no results")

	f := m.Get("/k").ProviderFailure
	require.NotNil(t, f)
	assert.Equal(t, 2, f.AttemptCount)
	assert.Equal(t, FailNoMatch, f.Reason)
	assert.False(t, f.FirstAttemptAt.IsZero())

	assert.Equal(t, 1, m.MarkFailureSkip("/k"))
	assert.Equal(t, 2, m.MarkFailureSkip("/k"))
	assert.Equal(t, 0, m.MarkFailureSkip("/unknown"))

	m.ClearFailure("/k")
	assert.Nil(t, m.Get("/k").ProviderFailure)
}

func TestClearApplied(t *testing.T) {
	m := newTestManager(t)

	m.MarkApplied("/k", "/out/file.mkv", "file.mkv", "file")
	m.ClearApplied("/k")

	got := m.Get("/k")
	assert.False(t, got.Applied)
	assert.False(t, got.Hidden)
	assert.Nil(t, got.AppliedAt)
	assert.Empty(t, got.AppliedTo)
	assert.Empty(t, got.RenderedName)
}

func TestMarkAppliedDeduplicatesTargets(t *testing.T) {
	m := newTestManager(t)

	m.MarkApplied("/k", "/out/file.mkv", "file.mkv", "file")
	m.MarkApplied("/k", "/out/file.mkv", "file.mkv", "file")
	m.MarkApplied("/k", "/out2/file.mkv", "file.mkv", "file")

	assert.Equal(t, PathList{"/out/file.mkv", "/out2/file.mkv"}, m.Get("/k").AppliedTo)
}

func TestRemoveIfUnapplied(t *testing.T) {
	m := newTestManager(t)

	m.Update("/gone", func(e *Entry) { e.SeriesTitle = "Show" })
	m.MarkApplied("/kept", "/out/file.mkv", "file.mkv", "file")

	assert.True(t, m.RemoveIfUnapplied("/gone"))
	assert.False(t, m.RemoveIfUnapplied("/kept"))
	assert.False(t, m.RemoveIfUnapplied("/never-existed"))

	assert.Nil(t, m.Get("/gone"))
	assert.NotNil(t, m.Get("/kept"))
}

func TestSweep(t *testing.T) {
	m := newTestManager(t)

	dir := t.TempDir()
	existing := filepath.ToSlash(filepath.Join(dir, "present.mkv"))
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	m.Update(existing, func(e *Entry) { e.SeriesTitle = "Present" })
	m.Update("/media/vanished.mkv", func(e *Entry) { e.SeriesTitle = "Gone" })
	m.MarkApplied("/media/applied-but-gone.mkv", "/out/file.mkv", "file.mkv", "file")
	m.SetRendered("/out/gone-target.mkv", RenderedRow{Source: "/media/vanished.mkv"})

	removed := m.Sweep()
	assert.Equal(t, 1, removed)
	assert.NotNil(t, m.Get(existing))
	assert.Nil(t, m.Get("/media/vanished.mkv"))
	assert.NotNil(t, m.Get("/media/applied-but-gone.mkv"), "applied entries survive sweep")

	_, ok := m.RenderedFor("/out/gone-target.mkv")
	assert.False(t, ok, "rendered rows cascade with their source")
}

func TestRenderedIndex(t *testing.T) {
	m := newTestManager(t)

	m.SetRendered("/out/file.mkv", RenderedRow{Source: "/in/file.mkv", RenderedName: "file.mkv"})

	row, ok := m.RenderedFor("/out/file.mkv")
	require.True(t, ok)
	assert.Equal(t, "/in/file.mkv", row.Source)

	m.DeleteRendered("/out/file.mkv")
	_, ok = m.RenderedFor("/out/file.mkv")
	assert.False(t, ok)
}

func TestPersistenceRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	logger := testutil.NewTestLogger(t)

	m, err := NewManager(st, logger)
	require.NoError(t, err)

	m.Update("/k", func(e *Entry) { e.SeriesTitle = "Show" })
	m.SetRendered("/out/file.mkv", RenderedRow{Source: "/k"})
	m.PersistNow()

	reloaded, err := NewManager(st, logger)
	require.NoError(t, err)

	got := reloaded.Get("/k")
	require.NotNil(t, got)
	assert.Equal(t, "Show", got.SeriesTitle)
	_, ok := reloaded.RenderedFor("/out/file.mkv")
	assert.True(t, ok)
}
