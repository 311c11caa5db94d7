package enrich

import (
	"encoding/json"
	"strings"

	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
)

// Normalize cleans a merged entry in place. It runs on every cache
// write so corrupted or inconsistent records heal themselves over time.
func Normalize(e *Entry) {
	if e == nil {
		return
	}

	isMovie := e.IsMovie != nil && *e.IsMovie

	if e.Provider != nil {
		e.Provider.Title = providers.StripPartColon(e.Provider.Title)
		e.Provider.SeriesTitleEnglish = providers.StripPartColon(e.Provider.SeriesTitleEnglish)
	}
	e.Title = providers.StripPartColon(e.Title)
	e.SeriesTitle = providers.StripPartColon(e.SeriesTitle)
	e.SeriesTitleEnglish = providers.StripPartColon(e.SeriesTitleEnglish)

	if !isMovie {
		e.SeriesTitle = providers.StripSeasonSuffix(e.SeriesTitle)
		e.Title = providers.StripSeasonSuffix(e.Title)
	}

	applyRelationOverride(e)
	preferParsedTitle(e)
	fillSeriesTitle(e)

	e.Title = cleanDisplay(e.Title)
	e.SeriesTitle = cleanDisplay(e.SeriesTitle)
	e.SeriesTitleExact = providers.NormalizeQuotes(e.SeriesTitleExact)
	e.SeriesTitleEnglish = cleanDisplay(e.SeriesTitleEnglish)
	e.EpisodeTitle = cleanDisplay(e.EpisodeTitle)
	if providers.LooksRomaji(e.SeriesTitleRomaji) {
		e.SeriesTitleRomaji = providers.LowercaseRomajiParticles(providers.NormalizeQuotes(e.SeriesTitleRomaji))
	} else {
		e.SeriesTitleRomaji = providers.NormalizeQuotes(e.SeriesTitleRomaji)
	}
}

func cleanDisplay(s string) string {
	return providers.TitleCaseIfAllCaps(providers.NormalizeQuotes(s))
}

// anilistRelations is the slice of the AniList raw payload the
// normalizer cares about.
type anilistRelations struct {
	Relations struct {
		Edges []struct {
			RelationType string `json:"relationType"`
			Node         struct {
				Title struct {
					English string `json:"english"`
					Romaji  string `json:"romaji"`
				} `json:"title"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"relations"`
}

// applyRelationOverride swaps a parent-series title for the child
// relation that matches what was actually on disk. Fires when the cached
// provider looks like a parent fallback: the lookup title names a sequel
// but the stored series title is the parent's.
func applyRelationOverride(e *Entry) {
	if e.Provider == nil || e.Provider.Provider != providers.AniList || len(e.Provider.Raw) == 0 {
		return
	}
	lookup := e.SeriesLookupTitle
	if lookup == "" || strings.EqualFold(lookup, e.SeriesTitle) {
		return
	}

	var rel anilistRelations
	if err := json.Unmarshal(e.Provider.Raw, &rel); err != nil {
		return
	}
	for _, edge := range rel.Relations.Edges {
		if edge.RelationType != string(providers.RelationSequel) && edge.RelationType != string(providers.RelationSideStory) {
			continue
		}
		for _, t := range []string{edge.Node.Title.English, edge.Node.Title.Romaji} {
			if t == "" {
				continue
			}
			if parser.TitleSimilarity(t, lookup) >= 0.8 {
				e.SeriesTitle = providers.StripSeasonSuffix(t)
				return
			}
		}
	}
}

// preferParsedTitle keeps the filename's own title when the provider
// returned what looks like a broader parent entry.
func preferParsedTitle(e *Entry) {
	if e.Parsed == nil || len(e.Parsed.Title) <= 2 || e.SeriesTitle == "" {
		return
	}
	parsed := strings.TrimSpace(e.Parsed.Title)
	if looksParentOf(e.SeriesTitle, parsed) {
		e.SeriesTitle = parsed
	}
}

// looksParentOf reports whether have is a strict word-prefix of want,
// i.e. the provider title is the franchise name and the parsed title
// adds a subtitle.
func looksParentOf(have, want string) bool {
	h := strings.Fields(strings.ToLower(have))
	w := strings.Fields(strings.ToLower(want))
	if len(h) == 0 || len(w) <= len(h) {
		return false
	}
	for i := range h {
		if h[i] != w[i] {
			return false
		}
	}
	return true
}

// fillSeriesTitle applies the priority chain for the display series
// title: explicit English, explicit exact, first candidate that does not
// look episode-like, parsed title.
func fillSeriesTitle(e *Entry) {
	if e.SeriesTitle != "" && !parser.LooksEpisodeLike(e.SeriesTitle) {
		return
	}
	for _, cand := range []string{e.SeriesTitleEnglish, e.SeriesTitleExact, e.ParentCandidate, e.Title} {
		if cand != "" && !parser.LooksEpisodeLike(cand) {
			e.SeriesTitle = cand
			return
		}
	}
	if e.Parsed != nil && e.Parsed.Title != "" {
		e.SeriesTitle = e.Parsed.Title
	}
}
