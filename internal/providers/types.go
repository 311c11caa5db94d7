// Package providers holds the shared result types every metadata adapter
// normalizes into. Relations between media are represented as tagged
// references to separately returned records, never as pointer cycles.
package providers

import "encoding/json"

// Provider IDs as they appear in metadata_provider_order.
const (
	AniDB     = "anidb"
	AniList   = "anilist"
	TVDB      = "tvdb"
	TMDB      = "tmdb"
	Wikipedia = "wikipedia"
	Kitsu     = "kitsu"
)

// RelationType tags an edge between two media records.
type RelationType string

const (
	RelationParent    RelationType = "PARENT"
	RelationPrequel   RelationType = "PREQUEL"
	RelationSequel    RelationType = "SEQUEL"
	RelationSource    RelationType = "SOURCE"
	RelationSideStory RelationType = "SIDE_STORY"
)

// TitleVariants carries the per-language titles a provider returns.
type TitleVariants struct {
	English string `json:"english,omitempty"`
	Romaji  string `json:"romaji,omitempty"`
	Native  string `json:"native,omitempty"`
	Display string `json:"display,omitempty"`
}

// Best returns the preferred display title: english, then romaji, then
// display, then native.
func (t TitleVariants) Best() string {
	switch {
	case t.English != "":
		return t.English
	case t.Romaji != "":
		return t.Romaji
	case t.Display != "":
		return t.Display
	default:
		return t.Native
	}
}

// RelatedMedia is one relation edge with a reference to the related
// record by provider ID.
type RelatedMedia struct {
	Relation RelationType  `json:"relation"`
	ID       int           `json:"id"`
	Title    TitleVariants `json:"title"`
	Format   string        `json:"format,omitempty"`
	Year     int           `json:"year,omitempty"`
}

// SeriesCandidate is a provider's best match for a series search.
type SeriesCandidate struct {
	Provider string        `json:"provider"`
	ID       string        `json:"id"`
	Title    TitleVariants `json:"title"`
	Year     string        `json:"year,omitempty"`
	// Format is the provider's media format token: TV, MOVIE, OVA, ONA,
	// SPECIAL, MUSIC...
	Format     string `json:"format,omitempty"`
	SeasonYear int    `json:"seasonYear,omitempty"`
	// NextAiringEpisode is the number of the next unaired episode, when
	// the provider exposes it. 0 means unknown or finished.
	NextAiringEpisode int            `json:"nextAiringEpisode,omitempty"`
	Relations         []RelatedMedia `json:"relations,omitempty"`
	// SourceDetail is a human-readable provenance label ("AniList 12345").
	SourceDetail string `json:"sourceDetail,omitempty"`
	// Raw is the opaque provider payload, kept for media-format
	// inference and debugging.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// EpisodeHit is a provider's answer for one (series, season, episode).
type EpisodeHit struct {
	Title   string `json:"title"`
	AirDate string `json:"airDate,omitempty"`
	// Source is the providing adapter's ID, Detail the provenance label.
	Source string          `json:"source"`
	Detail string          `json:"detail,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}
