package resolver

import (
	"context"
	"strconv"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
)

// episodeResult is one resolved episode title with provenance and an
// optional air date for year fallback.
type episodeResult struct {
	title   string
	airDate string
	source  enrich.SourceRef
}

// resolveEpisodeTitle walks the fallback chain: manual AniDB episode ID,
// TVDB, TMDB (with translations), Wikipedia, Kitsu. Placeholder titles
// are rejected at every step; a non-Latin title is kept only when
// nothing better turns up.
func (r *Resolver) resolveEpisodeTitle(ctx context.Context, req Request, match *seriesMatch, seriesTitle string, season, episode int) *episodeResult {
	var fallback *episodeResult

	keep := func(res *episodeResult) *episodeResult {
		if res == nil || res.title == "" || providers.IsPlaceholderTitle(res.title) {
			return nil
		}
		if !providers.IsLatin(res.title) {
			if fallback == nil {
				fallback = res
			}
			return nil
		}
		return res
	}

	if ids, ok := r.ManualEpisodeID(req.CanonicalPath); ok && r.clients.AniDB != nil && r.clients.AniDB.IsConfigured() {
		hit, err := r.clients.AniDB.EpisodeByID(ctx, ids.AniDBEpisode)
		if err != nil {
			r.logger.Debug().Err(err).Int("eid", ids.AniDBEpisode).Msg("manual AniDB episode lookup failed")
		} else if res := keep(&episodeResult{
			title:  hit.Title,
			source: enrich.SourceRef{ID: strconv.Itoa(ids.AniDBEpisode), Display: "AniDB", Detail: hit.Detail},
		}); res != nil {
			return res
		}
	}

	if res := keep(r.tvdbEpisode(ctx, match, seriesTitle, season, episode)); res != nil {
		return res
	}
	if res := keep(r.tmdbEpisode(ctx, match, seriesTitle, season, episode)); res != nil {
		return res
	}
	if res := keep(r.wikiEpisode(ctx, seriesTitle, season, episode)); res != nil {
		return res
	}
	if res := keep(r.kitsuEpisode(ctx, seriesTitle, season, episode)); res != nil {
		return res
	}
	return fallback
}

func (r *Resolver) tvdbEpisode(ctx context.Context, match *seriesMatch, seriesTitle string, season, episode int) *episodeResult {
	if r.clients.TVDB == nil || !r.clients.TVDB.IsConfigured() {
		return nil
	}

	seriesID := match.tvdbID
	if seriesID == 0 {
		results, err := r.clients.TVDB.SearchSeries(ctx, seriesTitle)
		if err != nil || len(results) == 0 {
			return nil
		}
		for i := range results {
			if parser.OverlapScore(seriesTitle, results[i].Name) >= 0.5 {
				seriesID, _ = strconv.Atoi(results[i].TVDBID)
				break
			}
		}
		if seriesID == 0 {
			return nil
		}
	}

	ep, err := r.clients.TVDB.GetEpisode(ctx, seriesID, season, episode)
	if err != nil {
		return nil
	}
	return &episodeResult{
		title:   ep.Name,
		airDate: ep.Aired,
		source:  enrich.SourceRef{ID: strconv.Itoa(ep.ID), Display: "TVDB", Detail: "TVDB series " + strconv.Itoa(seriesID)},
	}
}

func (r *Resolver) tmdbEpisode(ctx context.Context, match *seriesMatch, seriesTitle string, season, episode int) *episodeResult {
	if r.clients.TMDB == nil || !r.clients.TMDB.IsConfigured() {
		return nil
	}

	seriesID := match.tmdbID
	if seriesID == 0 || match.format == "MOVIE" {
		results, err := r.clients.TMDB.SearchTV(ctx, seriesTitle)
		if err != nil || len(results) == 0 {
			return nil
		}
		for i := range results {
			if parser.OverlapScore(seriesTitle, results[i].Name) >= 0.5 {
				seriesID = results[i].ID
				break
			}
		}
		if seriesID == 0 {
			return nil
		}
	}

	ep, err := r.clients.TMDB.GetEpisode(ctx, seriesID, season, episode)
	if err != nil {
		return nil
	}

	title := ep.Name
	if providers.IsPlaceholderTitle(title) || !providers.IsLatin(title) {
		if tr, err := r.clients.TMDB.GetEpisodeTranslation(ctx, seriesID, season, episode); err == nil && tr != "" {
			title = tr
		}
	}
	return &episodeResult{
		title:   title,
		airDate: ep.AirDate,
		source:  enrich.SourceRef{ID: strconv.Itoa(seriesID), Display: "TMDB", Detail: "TMDB tv " + strconv.Itoa(seriesID)},
	}
}

func (r *Resolver) wikiEpisode(ctx context.Context, seriesTitle string, season, episode int) *episodeResult {
	if r.clients.Wiki == nil {
		return nil
	}
	hit, err := r.clients.Wiki.EpisodeTitle(ctx, seriesTitle, season, episode)
	if err != nil || hit == nil {
		return nil
	}
	return &episodeResult{
		title:  hit.Title,
		source: enrich.SourceRef{Display: "Wikipedia", Detail: hit.Detail},
	}
}

func (r *Resolver) kitsuEpisode(ctx context.Context, seriesTitle string, season, episode int) *episodeResult {
	if r.clients.Kitsu == nil {
		return nil
	}
	hit, err := r.clients.Kitsu.EpisodeTitle(ctx, seriesTitle, season, episode)
	if err != nil || hit == nil {
		return nil
	}
	return &episodeResult{
		title:   hit.Title,
		airDate: hit.AirDate,
		source:  enrich.SourceRef{Display: "Kitsu", Detail: hit.Detail},
	}
}
