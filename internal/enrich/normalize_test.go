package enrich

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linkarr/linkarr/internal/parser"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeSeasonSuffix(t *testing.T) {
	e := &Entry{SeriesTitle: "Show 2nd Season"}
	Normalize(e)
	assert.Equal(t, "Show", e.SeriesTitle)

	// Movies keep their titles whole.
	m := &Entry{SeriesTitle: "Show 2nd Season", IsMovie: boolPtr(true)}
	Normalize(m)
	assert.Equal(t, "Show 2nd Season", m.SeriesTitle)
}

func TestNormalizePartColon(t *testing.T) {
	e := &Entry{SeriesTitle: "Deathly Hallows: Part 1", IsMovie: boolPtr(true)}
	Normalize(e)
	assert.Equal(t, "Deathly Hallows Part 1", e.SeriesTitle)
}

func TestNormalizeAllCapsTitle(t *testing.T) {
	e := &Entry{SeriesTitle: "ATTACK ON TITAN"}
	Normalize(e)
	assert.Equal(t, "Attack On Titan", e.SeriesTitle)
}

func TestNormalizeCurlyQuotes(t *testing.T) {
	e := &Entry{SeriesTitle: "Frieren’s Journey", EpisodeTitle: "The “End”"}
	Normalize(e)
	assert.Equal(t, "Frieren's Journey", e.SeriesTitle)
	assert.Equal(t, `The "End"`, e.EpisodeTitle)
}

func TestNormalizeRomajiParticles(t *testing.T) {
	e := &Entry{SeriesTitleRomaji: "Kimi No Na Wa Movie"}
	Normalize(e)
	assert.Equal(t, "Kimi no na wa Movie", e.SeriesTitleRomaji)
}

func TestNormalizeFillsSeriesTitle(t *testing.T) {
	e := &Entry{
		SeriesTitleEnglish: "Frieren",
		SeriesTitle:        "",
	}
	Normalize(e)
	assert.Equal(t, "Frieren", e.SeriesTitle)

	// Episode-like titles are skipped in the chain.
	e2 := &Entry{
		SeriesTitle:      "S01E05",
		SeriesTitleExact: "Real Name",
	}
	Normalize(e2)
	assert.Equal(t, "Real Name", e2.SeriesTitle)

	// Parsed title is the last resort.
	e3 := &Entry{Parsed: &parser.Parsed{Title: "From Filename"}}
	Normalize(e3)
	assert.Equal(t, "From Filename", e3.SeriesTitle)
}

func TestNormalizePrefersParsedOverParentTitle(t *testing.T) {
	e := &Entry{
		SeriesTitle: "Fate",
		Parsed:      &parser.Parsed{Title: "Fate Stay Night"},
	}
	Normalize(e)
	assert.Equal(t, "Fate Stay Night", e.SeriesTitle)

	// Unrelated parsed titles do not override.
	e2 := &Entry{
		SeriesTitle: "Frieren",
		Parsed:      &parser.Parsed{Title: "Something Else Entirely"},
	}
	Normalize(e2)
	assert.Equal(t, "Frieren", e2.SeriesTitle)
}

func TestNormalizeRelationOverride(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"relations": map[string]any{
			"edges": []map[string]any{
				{
					"relationType": "SEQUEL",
					"node": map[string]any{
						"title": map[string]any{
							"english": "Show Final Season",
							"romaji":  "",
						},
					},
				},
			},
		},
	})

	e := &Entry{
		SeriesTitle:       "Show",
		SeriesLookupTitle: "Show Final Season",
		Provider:          &ProviderBlock{Provider: "anilist", Raw: raw},
	}
	Normalize(e)
	assert.Equal(t, "Show Final Season", e.SeriesTitle)
}
