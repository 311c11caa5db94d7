package enrich

import (
	"encoding/json"
	"time"

	"github.com/linkarr/linkarr/internal/parser"
)

// FlexString decodes either a JSON string or an object with a display
// field. Historic records sometimes stored provider.source as an object.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for _, k := range []string{"display", "name", "provider"} {
		if v, ok := obj[k].(string); ok {
			*f = FlexString(v)
			return nil
		}
	}
	*f = ""
	return nil
}

// SourceRef identifies where one piece of metadata came from.
type SourceRef struct {
	ID      string `json:"id,omitempty"`
	Display string `json:"display,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Sources splits provenance between the series match and the episode
// title, which often come from different providers.
type Sources struct {
	Series  *SourceRef `json:"series,omitempty"`
	Episode *SourceRef `json:"episode,omitempty"`
}

// ProviderBlock is what the resolver settled on for one file.
type ProviderBlock struct {
	Provider            string          `json:"provider,omitempty"`
	ID                  string          `json:"id,omitempty"`
	Title               string          `json:"title,omitempty"`
	Year                string          `json:"year,omitempty"`
	Season              *int            `json:"season,omitempty"`
	Episode             *int            `json:"episode,omitempty"`
	EpisodeTitle        string          `json:"episodeTitle,omitempty"`
	RenderedName        string          `json:"renderedName,omitempty"`
	Matched             bool            `json:"matched"`
	Source              FlexString      `json:"source,omitempty"`
	SeriesTitleEnglish  string          `json:"seriesTitleEnglish,omitempty"`
	SeriesTitleRomaji   string          `json:"seriesTitleRomaji,omitempty"`
	SeriesTitleExact    string          `json:"seriesTitleExact,omitempty"`
	OriginalSeriesTitle string          `json:"originalSeriesTitle,omitempty"`
	Sources             *Sources        `json:"sources,omitempty"`
	Raw                 json.RawMessage `json:"raw,omitempty"`
}

// Complete reports whether the block needs no re-lookup: it matched, has
// a rendered name, and carries an episode title whenever an episode
// number is present.
func (b *ProviderBlock) Complete() bool {
	if b == nil || !b.Matched || b.RenderedName == "" {
		return false
	}
	if b.Episode != nil && b.EpisodeTitle == "" {
		return false
	}
	return true
}

// FailureReason values for ProviderFailure.Reason.
const (
	FailNoMatch = "no-match"
	FailError   = "error"
)

// ProviderFailure memoizes a lookup that found nothing or errored, so
// rescans do not hammer the providers.
type ProviderFailure struct {
	Provider       string    `json:"provider,omitempty"`
	Reason         string    `json:"reason"`
	Code           string    `json:"code,omitempty"`
	AttemptCount   int       `json:"attemptCount"`
	FirstAttemptAt time.Time `json:"firstAttemptAt"`
	LastAttemptAt  time.Time `json:"lastAttemptAt"`
	LastError      string    `json:"lastError,omitempty"`
	SkipCount      int       `json:"skipCount"`
	LastSkipAt     time.Time `json:"lastSkipAt,omitempty"`
}

// PathList marshals as a JSON array but accepts a bare string when
// decoding, since older records stored appliedTo as a single path.
type PathList []string

func (p *PathList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*p = nil
		} else {
			*p = PathList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*p = PathList(many)
	return nil
}

// First returns the first path or "".
func (p PathList) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Entry is the per-file aggregated record, keyed by canonical path.
type Entry struct {
	Parsed          *parser.Parsed   `json:"parsed,omitempty"`
	Provider        *ProviderBlock   `json:"provider,omitempty"`
	ProviderFailure *ProviderFailure `json:"providerFailure,omitempty"`

	Title               string `json:"title,omitempty"`
	SeriesTitle         string `json:"seriesTitle,omitempty"`
	SeriesTitleExact    string `json:"seriesTitleExact,omitempty"`
	SeriesTitleEnglish  string `json:"seriesTitleEnglish,omitempty"`
	SeriesTitleRomaji   string `json:"seriesTitleRomaji,omitempty"`
	OriginalSeriesTitle string `json:"originalSeriesTitle,omitempty"`
	ParentCandidate     string `json:"parentCandidate,omitempty"`
	SeriesLookupTitle   string `json:"seriesLookupTitle,omitempty"`
	Year                string `json:"year,omitempty"`
	IsMovie             *bool  `json:"isMovie,omitempty"`
	MediaFormat         string `json:"mediaFormat,omitempty"`
	EpisodeTitle        string `json:"episodeTitle,omitempty"`
	Season              *int   `json:"season,omitempty"`
	Episode             *int   `json:"episode,omitempty"`
	EpisodeRange        string `json:"episodeRange,omitempty"`
	// EpisodeCode keeps AniDB raw episode codes (S2, C1, T1) so labels
	// can preserve them.
	EpisodeCode string `json:"episodeCode,omitempty"`
	ExtraGuess  string `json:"extraGuess,omitempty"`

	Applied          bool       `json:"applied,omitempty"`
	Hidden           bool       `json:"hidden,omitempty"`
	AppliedAt        *time.Time `json:"appliedAt,omitempty"`
	AppliedTo        PathList   `json:"appliedTo,omitempty"`
	MetadataFilename string     `json:"metadataFilename,omitempty"`
	RenderedName     string     `json:"renderedName,omitempty"`

	SourceID  string    `json:"sourceId,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	CachedAt  time.Time `json:"cachedAt,omitempty"`
}

// RenderedRow maps a hardlink target back to the source that produced
// it.
type RenderedRow struct {
	Source           string         `json:"source"`
	RenderedName     string         `json:"renderedName,omitempty"`
	AppliedTo        string         `json:"appliedTo,omitempty"`
	MetadataFilename string         `json:"metadataFilename,omitempty"`
	Provider         *ProviderBlock `json:"provider,omitempty"`
	Parsed           *parser.Parsed `json:"parsed,omitempty"`
}
