package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/providers/anilist"
	"github.com/linkarr/linkarr/internal/providers/tmdb"
	"github.com/linkarr/linkarr/internal/providers/tvdb"
)

// seriesMatch is the provider-agnostic outcome of series selection.
type seriesMatch struct {
	provider     string
	id           string
	title        providers.TitleVariants
	year         string
	format       string
	sourceDetail string
	raw          json.RawMessage

	lookupTitle    string
	fromParent     bool
	parentTitle    string
	detectedSeason int

	tmdbID       int
	tvdbID       int
	anilistMedia *anilist.Media
	movieHint    *bool
}

// metaLookup runs one non-AniDB provider segment: pick a series via the
// first provider that matches, then walk the episode-title fallback
// chain and merge.
func (r *Resolver) metaLookup(ctx context.Context, segment []string, req Request, cands candidates, parsed parser.Parsed) (*resolved, error) {
	match, err := r.selectSeries(ctx, segment, cands, parsed)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}
	return r.buildResolved(ctx, req, match, parsed), nil
}

func (r *Resolver) selectSeries(ctx context.Context, segment []string, cands candidates, parsed parser.Parsed) (*seriesMatch, error) {
	var lastErr error
	for _, p := range segment {
		var match *seriesMatch
		var err error
		switch p {
		case providers.AniList:
			match, err = r.anilistSeries(ctx, cands, parsed)
		case providers.TVDB:
			match, err = r.tvdbSeries(ctx, cands)
		case providers.TMDB:
			match, err = r.tmdbSeries(ctx, cands, parsed)
		default:
			// Wikipedia and Kitsu only contribute episode titles.
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}
		if match != nil {
			return match, nil
		}
	}
	return nil, lastErr
}

func (r *Resolver) anilistSeries(ctx context.Context, cands candidates, parsed parser.Parsed) (*seriesMatch, error) {
	sel, err := r.selectAniList(ctx, cands, parsed)
	if err != nil || sel == nil {
		return nil, err
	}

	m := sel.media
	raw, _ := json.Marshal(m)
	return &seriesMatch{
		provider: providers.AniList,
		id:       strconv.Itoa(m.ID),
		title: providers.TitleVariants{
			English: m.Title.English,
			Romaji:  m.Title.Romaji,
			Native:  m.Title.Native,
		},
		year:           anilistYear(m),
		format:         m.Format,
		sourceDetail:   fmt.Sprintf("AniList %d", m.ID),
		raw:            raw,
		lookupTitle:    sel.lookupTitle,
		fromParent:     sel.fromParent,
		parentTitle:    sel.parentTitle,
		detectedSeason: sel.detectedSeason,
		anilistMedia:   m,
	}, nil
}

func (r *Resolver) tvdbSeries(ctx context.Context, cands candidates) (*seriesMatch, error) {
	if manual, ok := r.ManualSeriesIDs(cands.primary()); ok && manual.TVDB != 0 {
		s, err := r.clients.TVDB.GetSeries(ctx, manual.TVDB)
		if err != nil {
			return nil, err
		}
		return tvdbMatch(*s, cands.primary(), false), nil
	}

	var lastErr error
	for _, cand := range cands.list {
		results, err := r.clients.TVDB.SearchSeries(ctx, cand.name)
		if err != nil {
			if errors.Is(err, tvdb.ErrNotFound) {
				continue
			}
			lastErr = err
			continue
		}
		accept := filenameAccept
		if cand.fromParent {
			accept = parentAccept
		}
		for i := range results {
			if parser.OverlapScore(cand.name, results[i].Name) >= maxFloat(accept, 0.35) {
				return tvdbMatch(results[i], cand.name, cand.fromParent), nil
			}
		}
	}
	return nil, lastErr
}

func tvdbMatch(s tvdb.SeriesResult, lookup string, fromParent bool) *seriesMatch {
	id, _ := strconv.Atoi(s.TVDBID)
	raw, _ := json.Marshal(s)
	return &seriesMatch{
		provider:     providers.TVDB,
		id:           s.TVDBID,
		title:        providers.TitleVariants{English: s.Name},
		year:         s.Year,
		format:       "TV",
		sourceDetail: "TVDB " + s.TVDBID,
		raw:          raw,
		lookupTitle:  lookup,
		fromParent:   fromParent,
		tvdbID:       id,
	}
}

func (r *Resolver) tmdbSeries(ctx context.Context, cands candidates, parsed parser.Parsed) (*seriesMatch, error) {
	if manual, ok := r.ManualSeriesIDs(cands.primary()); ok && manual.TMDB != 0 {
		tv, err := r.clients.TMDB.GetTV(ctx, manual.TMDB)
		if err != nil {
			return nil, err
		}
		return tmdbTVMatch(*tv, cands.primary(), false), nil
	}

	// No episode structure in the filename suggests a movie; try the
	// movie index first, then TV, then the other way around.
	movieFirst := parsed.Episode == nil && parsed.Season == nil

	var lastErr error
	for _, cand := range cands.list {
		accept := filenameAccept
		if cand.fromParent {
			accept = parentAccept
		}

		tryMovie := func() *seriesMatch {
			results, err := r.clients.TMDB.SearchMovie(ctx, cand.name, parsed.Year)
			if err != nil {
				lastErr = err
				return nil
			}
			for i := range results {
				if parser.OverlapScore(cand.name, results[i].Title) >= maxFloat(accept, 0.35) {
					return tmdbMovieMatch(results, i, cand.name, cand.fromParent)
				}
			}
			return nil
		}
		tryTV := func() *seriesMatch {
			results, err := r.clients.TMDB.SearchTV(ctx, cand.name)
			if err != nil {
				lastErr = err
				return nil
			}
			for i := range results {
				if parser.OverlapScore(cand.name, results[i].Name) >= maxFloat(accept, 0.35) {
					return tmdbTVMatch(results[i], cand.name, cand.fromParent)
				}
			}
			return nil
		}

		var match *seriesMatch
		if movieFirst {
			if match = tryMovie(); match == nil {
				match = tryTV()
			}
		} else {
			if match = tryTV(); match == nil {
				match = tryMovie()
			}
		}
		if match != nil {
			return match, nil
		}
	}
	return nil, lastErr
}

func tmdbTVMatch(tv tmdb.TVResult, lookup string, fromParent bool) *seriesMatch {
	year := ""
	if len(tv.FirstAirDate) >= 4 {
		year = tv.FirstAirDate[:4]
	}
	raw, _ := json.Marshal(tv)
	isMovie := false
	return &seriesMatch{
		provider:     providers.TMDB,
		id:           strconv.Itoa(tv.ID),
		title:        providers.TitleVariants{English: tv.Name, Native: tv.OriginalName},
		year:         year,
		format:       "TV",
		sourceDetail: fmt.Sprintf("TMDB tv %d", tv.ID),
		raw:          raw,
		lookupTitle:  lookup,
		fromParent:   fromParent,
		tmdbID:       tv.ID,
		movieHint:    &isMovie,
	}
}

// tmdbMovieMatch builds a movie match and records sequel-part titles
// from the surrounding result page for episode-indexed movie files.
func tmdbMovieMatch(results []tmdb.MovieResult, idx int, lookup string, fromParent bool) *seriesMatch {
	m := results[idx]
	year := ""
	if len(m.ReleaseDate) >= 4 {
		year = m.ReleaseDate[:4]
	}
	raw, _ := json.Marshal(m)
	isMovie := true
	return &seriesMatch{
		provider:     providers.TMDB,
		id:           strconv.Itoa(m.ID),
		title:        providers.TitleVariants{English: m.Title, Native: m.OriginalTitle},
		year:         year,
		format:       "MOVIE",
		sourceDetail: fmt.Sprintf("TMDB movie %d", m.ID),
		raw:          raw,
		lookupTitle:  lookup,
		fromParent:   fromParent,
		tmdbID:       m.ID,
		movieHint:    &isMovie,
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
