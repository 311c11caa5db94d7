package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/testutil"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	st := testutil.NewTestStore(t)
	cache, err := enrich.NewManager(st, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return New(cache, st, Clients{}, testutil.NewTestLogger(t))
}

func TestTitleKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Attack on Titan", "attack on titan"},
		{"  Attack   ON   Titan  ", "attack on titan"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleKey(tt.input); got != tt.want {
			t.Errorf("TitleKey(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestManualSeriesIDsRoundTrip(t *testing.T) {
	r := newTestResolver(t)

	_, ok := r.ManualSeriesIDs("Show")
	assert.False(t, ok)

	require.NoError(t, r.SetManualSeriesIDs("Show", SeriesIDs{AniList: 123, TVDB: 456}))

	ids, ok := r.ManualSeriesIDs("show")
	require.True(t, ok, "title keys are case-insensitive")
	assert.Equal(t, 123, ids.AniList)
	assert.Equal(t, 456, ids.TVDB)
	assert.True(t, ids.Has("anilist"))
	assert.True(t, ids.Has("tvdb"))
	assert.False(t, ids.Has("tmdb"))

	// Zero IDs delete the mapping.
	require.NoError(t, r.SetManualSeriesIDs("Show", SeriesIDs{}))
	_, ok = r.ManualSeriesIDs("Show")
	assert.False(t, ok)
}

func TestManualEpisodeIDRoundTrip(t *testing.T) {
	r := newTestResolver(t)

	require.NoError(t, r.SetManualEpisodeID("/lib/show/ep1.mkv", EpisodeIDs{AniDBEpisode: 99}))

	ids, ok := r.ManualEpisodeID("/lib/show/ep1.mkv")
	require.True(t, ok)
	assert.Equal(t, 99, ids.AniDBEpisode)

	require.NoError(t, r.SetManualEpisodeID("/lib/show/ep1.mkv", EpisodeIDs{}))
	_, ok = r.ManualEpisodeID("/lib/show/ep1.mkv")
	assert.False(t, ok)
}

func TestSeriesIDsEmpty(t *testing.T) {
	assert.True(t, SeriesIDs{}.Empty())
	assert.False(t, SeriesIDs{TMDB: 1}.Empty())
}
