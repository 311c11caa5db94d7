package resolver

import (
	"regexp"
	"strings"

	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/store"
)

// SeriesIDs are user-pinned provider IDs for a series title. When set,
// the resolver fetches by ID instead of searching.
type SeriesIDs struct {
	AniList int `json:"anilist,omitempty"`
	TMDB    int `json:"tmdb,omitempty"`
	TVDB    int `json:"tvdb,omitempty"`
}

// Empty reports whether no ID is pinned.
func (s SeriesIDs) Empty() bool { return s.AniList == 0 && s.TMDB == 0 && s.TVDB == 0 }

// Has reports whether an ID is pinned for the given provider.
func (s SeriesIDs) Has(provider string) bool {
	switch provider {
	case providers.AniList:
		return s.AniList != 0
	case providers.TMDB:
		return s.TMDB != 0
	case providers.TVDB:
		return s.TVDB != 0
	}
	return false
}

// EpisodeIDs are per-file overrides.
type EpisodeIDs struct {
	AniDBEpisode int `json:"anidbEpisode,omitempty"`
}

var titleKeyNoise = regexp.MustCompile(`[^a-z0-9 ]+`)

// TitleKey normalizes a series title into its manual-ID map key.
func TitleKey(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = titleKeyNoise.ReplaceAllString(t, " ")
	return strings.Join(strings.Fields(t), " ")
}

// ManualSeriesIDs looks up pinned IDs for a series title.
func (r *Resolver) ManualSeriesIDs(title string) (SeriesIDs, bool) {
	var ids SeriesIDs
	if title == "" {
		return ids, false
	}
	ok, err := r.store.Get(store.MapManualIDs, TitleKey(title), &ids)
	if err != nil {
		r.logger.Warn().Err(err).Str("title", title).Msg("manual IDs read failed")
		return SeriesIDs{}, false
	}
	return ids, ok && !ids.Empty()
}

// SetManualSeriesIDs pins provider IDs for a series title. Zeroed IDs
// delete the record.
func (r *Resolver) SetManualSeriesIDs(title string, ids SeriesIDs) error {
	key := TitleKey(title)
	if ids.Empty() {
		return r.store.Delete(store.MapManualIDs, key)
	}
	return r.store.Set(store.MapManualIDs, key, ids)
}

// ManualEpisodeID looks up the per-file AniDB episode override.
func (r *Resolver) ManualEpisodeID(canonicalPath string) (EpisodeIDs, bool) {
	var ids EpisodeIDs
	ok, err := r.store.Get(store.MapManualEpIDs, canonicalPath, &ids)
	if err != nil {
		r.logger.Warn().Err(err).Str("path", canonicalPath).Msg("manual episode ID read failed")
		return EpisodeIDs{}, false
	}
	return ids, ok && ids.AniDBEpisode != 0
}

// SetManualEpisodeID pins or clears the AniDB episode for a file.
func (r *Resolver) SetManualEpisodeID(canonicalPath string, ids EpisodeIDs) error {
	if ids.AniDBEpisode == 0 {
		return r.store.Delete(store.MapManualEpIDs, canonicalPath)
	}
	return r.store.Set(store.MapManualEpIDs, canonicalPath, ids)
}
