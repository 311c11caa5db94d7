package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/providers/anilist"
)

// anilistSelection is the outcome of AniList candidate selection.
type anilistSelection struct {
	media          *anilist.Media
	lookupTitle    string
	fromParent     bool
	parentTitle    string
	detectedSeason int
}

const (
	filenameAccept = 0.2
	parentAccept   = 0.35
	queryAccept    = 0.6
)

// selectAniList runs the search-and-score pipeline over the series
// candidates and returns the best media, or nil when nothing clears the
// thresholds.
func (r *Resolver) selectAniList(ctx context.Context, cands candidates, parsed parser.Parsed) (*anilistSelection, error) {
	if manual, ok := r.ManualSeriesIDs(cands.primary()); ok && manual.AniList != 0 {
		media, err := r.clients.AniList.GetByID(ctx, manual.AniList)
		if err != nil {
			return nil, err
		}
		sel := &anilistSelection{media: media, lookupTitle: cands.primary()}
		r.collapseSequel(ctx, sel, parsed)
		return sel, nil
	}

	var lastErr error
	for _, cand := range cands.list {
		sel, err := r.searchCandidate(ctx, cand, parsed)
		if err != nil {
			lastErr = err
			continue
		}
		if sel != nil {
			r.collapseSequel(ctx, sel, parsed)
			return sel, nil
		}
	}
	return nil, lastErr
}

// searchCandidate issues the season-qualified query variants for one
// candidate name and scores the results.
func (r *Resolver) searchCandidate(ctx context.Context, cand candidate, parsed parser.Parsed) (*anilistSelection, error) {
	queries := []string{cand.name}
	if parsed.Season != nil && *parsed.Season > 1 {
		queries = append(queries,
			fmt.Sprintf("%s Season %d", cand.name, *parsed.Season),
			fmt.Sprintf("%s (Season %d)", cand.name, *parsed.Season),
		)
	}

	accept := filenameAccept
	if cand.fromParent {
		accept = parentAccept
	}

	var best *anilist.Media
	var bestScore float64
	var lastErr error

	for _, q := range queries {
		results, err := r.clients.AniList.Search(ctx, q)
		if err != nil {
			lastErr = err
			continue
		}
		if len(results) == 0 {
			continue
		}

		m, score := pickMedia(results, cand.name, parsed)
		if m != nil && score > bestScore {
			best, bestScore = m, score
		}
		// A strong hit on an earlier query variant wins outright.
		if bestScore >= queryAccept {
			break
		}
	}

	if best == nil || bestScore < accept {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, nil
	}
	return &anilistSelection{media: best, lookupTitle: cand.name, fromParent: cand.fromParent}, nil
}

// pickMedia scores a result page against the base query and applies the
// season and specials preferences among near-ties.
func pickMedia(results []anilist.Media, query string, parsed parser.Parsed) (*anilist.Media, float64) {
	wantSpecial := (parsed.Season != nil && *parsed.Season == 0) || parsed.IsDecimalEpisode()
	wantSeason := 0
	if parsed.Season != nil {
		wantSeason = *parsed.Season
	}

	type scored struct {
		m     *anilist.Media
		score float64
	}
	var ranked []scored
	for i := range results {
		m := &results[i]
		s := mediaScore(m, query)
		if s <= 0 {
			continue
		}
		ranked = append(ranked, scored{m, s})
	}
	if len(ranked) == 0 {
		return nil, 0
	}

	best := ranked[0]
	for _, c := range ranked[1:] {
		if c.score > best.score {
			best = c
		}
	}

	// Among near-ties, prefer the entry matching the requested season,
	// or the least season-specific entry when none was requested, and
	// dodge Specials unless the request itself looks special.
	for _, c := range ranked {
		if c.score < best.score-0.05 {
			continue
		}
		if isSpecialMedia(c.m) != wantSpecial {
			continue
		}
		if wantSeason > 1 {
			if titleNamesSeason(c.m, wantSeason) && !titleNamesSeason(best.m, wantSeason) {
				best = c
			}
			continue
		}
		if !titleNamesAnySeason(c.m) && titleNamesAnySeason(best.m) {
			best = c
		}
	}
	if isSpecialMedia(best.m) && !wantSpecial {
		for _, c := range ranked {
			if c.score >= best.score-0.05 && !isSpecialMedia(c.m) {
				best = c
				break
			}
		}
	}
	return best.m, best.score
}

func mediaScore(m *anilist.Media, query string) float64 {
	best := 0.0
	for _, t := range []string{m.Title.English, m.Title.Romaji, m.Title.Native} {
		if t == "" {
			continue
		}
		if s := parser.OverlapScore(query, t); s > best {
			best = s
		}
		// Season suffixes on the candidate should not depress the score.
		if s := parser.OverlapScore(query, providers.StripSeasonSuffix(t)); s > best {
			best = s
		}
	}
	return best
}

func isSpecialMedia(m *anilist.Media) bool {
	if m.Format == "SPECIAL" {
		return true
	}
	for _, t := range []string{m.Title.English, m.Title.Romaji} {
		if strings.Contains(strings.ToLower(t), "special") {
			return true
		}
	}
	return false
}

func titleNamesSeason(m *anilist.Media, season int) bool {
	for _, t := range []string{m.Title.English, m.Title.Romaji} {
		if providers.SeasonNumberFromTitle(t) == season {
			return true
		}
	}
	return false
}

func titleNamesAnySeason(m *anilist.Media) bool {
	for _, t := range []string{m.Title.English, m.Title.Romaji} {
		if t != "" && providers.StripSeasonSuffix(t) != strings.TrimRight(strings.TrimSpace(t), " :-") {
			return true
		}
	}
	return false
}

// collapseSequel re-fetches the parent entry when the matched media is a
// sequel that has not yet aired the requested episode. The child title's
// ordinal token becomes the detected season.
func (r *Resolver) collapseSequel(ctx context.Context, sel *anilistSelection, parsed parser.Parsed) {
	m := sel.media
	if parsed.Episode == nil || m.NextAiringEpisode == nil {
		return
	}
	if *parsed.Episode <= m.NextAiringEpisode.Episode-1 {
		return
	}

	parentID := 0
	var parentTitle string
	for _, want := range []providers.RelationType{providers.RelationParent, providers.RelationPrequel, providers.RelationSource} {
		for _, e := range m.Relations.Edges {
			if providers.RelationType(e.RelationType) != want {
				continue
			}
			parentID = e.Node.ID
			parentTitle = e.Node.Title.English
			if parentTitle == "" {
				parentTitle = e.Node.Title.Romaji
			}
			break
		}
		if parentID != 0 {
			break
		}
	}
	if parentID == 0 {
		return
	}

	childTitle := m.Title.English
	if childTitle == "" {
		childTitle = m.Title.Romaji
	}

	parent, err := r.clients.AniList.GetByID(ctx, parentID)
	if err != nil {
		r.logger.Debug().Err(err).Int("parentId", parentID).Msg("parent fetch failed, keeping sequel match")
		return
	}

	sel.media = parent
	sel.parentTitle = parentTitle
	if n := providers.SeasonNumberFromTitle(childTitle); n > 0 {
		sel.detectedSeason = n
	} else if parsed.Season != nil {
		sel.detectedSeason = *parsed.Season
	}
	r.logger.Debug().Str("child", childTitle).Str("parent", parentTitle).Int("season", sel.detectedSeason).Msg("collapsed sequel to parent")
}

// resolveSeriesTitles applies the display-title rules: prefer English
// unless it is ALL-CAPS, in which case use romaji when it is the same
// string ignoring case, else title-case the English.
func resolveSeriesTitles(m *anilist.Media) (display, english, romaji, exact string) {
	english = m.Title.English
	romaji = m.Title.Romaji

	exact = english
	if exact == "" {
		exact = romaji
	}

	display = english
	if display == "" {
		display = romaji
	} else if providers.IsAllCaps(display) {
		if romaji != "" && strings.EqualFold(display, romaji) {
			display = romaji
		} else {
			display = providers.TitleCaseIfAllCaps(display)
		}
	}
	display = providers.StripSeasonSuffix(display)
	return display, english, romaji, exact
}

func anilistYear(m *anilist.Media) string {
	if m.StartDate.Year > 0 {
		return strconv.Itoa(m.StartDate.Year)
	}
	if m.SeasonYear > 0 {
		return strconv.Itoa(m.SeasonYear)
	}
	return ""
}
