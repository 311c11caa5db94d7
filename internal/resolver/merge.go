package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/render"
)

// resolved carries everything a successful lookup decided, ready to be
// merged onto the cached entry.
type resolved struct {
	block enrich.ProviderBlock

	title               string
	seriesTitle         string
	seriesTitleEnglish  string
	seriesTitleRomaji   string
	seriesTitleExact    string
	originalSeriesTitle string
	parentCandidate     string
	seriesLookupTitle   string
	year                string
	season              *int
	episode             *int
	episodeRange        string
	episodeCode         string
	episodeTitle        string
	isMovie             *bool
	mediaFormat         string
	extraGuess          string
}

// applyTo writes the resolution onto an entry and computes the rendered
// provider name that completes the block.
func (res *resolved) applyTo(e *enrich.Entry, parsed parser.Parsed) {
	e.Parsed = &parsed
	e.Title = res.title
	e.SeriesTitle = res.seriesTitle
	e.SeriesTitleEnglish = res.seriesTitleEnglish
	e.SeriesTitleRomaji = res.seriesTitleRomaji
	e.SeriesTitleExact = res.seriesTitleExact
	e.OriginalSeriesTitle = res.originalSeriesTitle
	e.ParentCandidate = res.parentCandidate
	e.SeriesLookupTitle = res.seriesLookupTitle
	e.Year = res.year
	e.Season = res.season
	e.Episode = res.episode
	e.EpisodeRange = res.episodeRange
	e.EpisodeCode = res.episodeCode
	e.EpisodeTitle = res.episodeTitle
	e.IsMovie = res.isMovie
	e.MediaFormat = res.mediaFormat
	e.ExtraGuess = res.extraGuess
	e.Timestamp = time.Now()

	block := res.block
	block.RenderedName = render.ProviderName(e)
	e.Provider = &block
	e.Provider.RenderedName = block.RenderedName
}

// buildResolved merges a series match, the episode-title chain, year
// resolution and format inference into one result.
func (r *Resolver) buildResolved(ctx context.Context, req Request, match *seriesMatch, parsed parser.Parsed) *resolved {
	res := &resolved{
		seriesLookupTitle: match.lookupTitle,
		parentCandidate:   match.parentTitle,
		episodeRange:      parsed.EpisodeRange,
		season:            parsed.Season,
		episode:           parsed.Episode,
	}

	if match.anilistMedia != nil {
		display, english, romaji, exact := resolveSeriesTitles(match.anilistMedia)
		res.seriesTitle = display
		res.seriesTitleEnglish = english
		res.seriesTitleRomaji = romaji
		res.seriesTitleExact = exact
		res.originalSeriesTitle = match.anilistMedia.Title.Native
	} else {
		exact := match.title.English
		if exact == "" {
			exact = match.title.Native
		}
		res.seriesTitleEnglish = match.title.English
		res.seriesTitleExact = exact
		res.originalSeriesTitle = match.title.Native
		res.seriesTitle = providers.StripSeasonSuffix(providers.TitleCaseIfAllCaps(exact))
	}
	res.title = res.seriesTitle

	if match.detectedSeason > 0 {
		s := match.detectedSeason
		res.season = &s
	}

	res.mediaFormat, res.isMovie = inferFormat(match, parsed)
	isMovie := res.isMovie != nil && *res.isMovie

	var epRes *episodeResult
	if !isMovie && res.episode != nil {
		season := 1
		if res.season != nil {
			season = *res.season
		}
		epRes = r.resolveEpisodeTitle(ctx, req, match, res.seriesTitle, season, *res.episode)
		if epRes != nil {
			res.episodeTitle = epRes.title
		} else if parsed.EpisodeTitle != "" {
			res.episodeTitle = parsed.EpisodeTitle
		}
	}

	res.year = resolveYear(match, epRes, parsed, isSpecialRequest(parsed))

	if isMovie {
		res.title = providers.StripPartColon(res.seriesTitle)
		res.seriesTitle = res.title
		if guess := r.sequelPartGuess(ctx, match, parsed); guess != "" {
			res.extraGuess = guess
			res.title = guess
		}
	}

	res.block = enrich.ProviderBlock{
		Provider:            match.provider,
		ID:                  match.id,
		Title:               res.title,
		Year:                res.year,
		Season:              res.season,
		Episode:             res.episode,
		EpisodeTitle:        res.episodeTitle,
		Matched:             true,
		Source:              enrich.FlexString(match.sourceDetail),
		SeriesTitleEnglish:  res.seriesTitleEnglish,
		SeriesTitleRomaji:   res.seriesTitleRomaji,
		SeriesTitleExact:    res.seriesTitleExact,
		OriginalSeriesTitle: res.originalSeriesTitle,
		Raw:                 match.raw,
		Sources: &enrich.Sources{
			Series: &enrich.SourceRef{ID: match.id, Display: match.provider, Detail: match.sourceDetail},
		},
	}
	if epRes != nil {
		src := epRes.source
		res.block.Sources.Episode = &src
	}
	return res
}

func isSpecialRequest(parsed parser.Parsed) bool {
	return (parsed.Season != nil && *parsed.Season == 0) || parsed.IsDecimalEpisode()
}

// resolveYear applies the fallback order: episode air date for specials,
// series start dates, TVDB episode air date over series date, the
// match's own year, then the filename year.
func resolveYear(match *seriesMatch, epRes *episodeResult, parsed parser.Parsed, special bool) string {
	if special && epRes != nil && len(epRes.airDate) >= 4 {
		return epRes.airDate[:4]
	}
	if match.anilistMedia != nil {
		if y := anilistYear(match.anilistMedia); y != "" {
			return y
		}
	}
	if epRes != nil && epRes.source.Display == "TVDB" && len(epRes.airDate) >= 4 {
		return epRes.airDate[:4]
	}
	if match.year != "" {
		return match.year
	}
	return parsed.Year
}

var formatMovieTokens = []string{`"MOVIE"`, `"FILM"`, `"release_date"`}
var formatSeriesTokens = []string{`"TV"`, `"TV_SHORT"`, `"OVA"`, `"ONA"`, `"SPECIAL"`, `"first_air_date"`, `"episodes"`, `"seasonNumber"`, `"media_type":"tv"`}

// inferFormat decides movie-ness from the provider's own hint when it
// gave one, otherwise by scanning the raw payload for format tokens. A
// movie signal with no opposing series signal means movie; a series
// signal means not; neither leaves it unknown.
func inferFormat(match *seriesMatch, parsed parser.Parsed) (string, *bool) {
	format := match.format
	if match.movieHint != nil {
		return format, match.movieHint
	}

	raw := string(match.raw)
	movieSignal := false
	seriesSignal := parsed.Episode != nil || parsed.Season != nil
	for _, tok := range formatMovieTokens {
		if strings.Contains(raw, tok) {
			movieSignal = true
			break
		}
	}
	for _, tok := range formatSeriesTokens {
		if strings.Contains(raw, tok) {
			seriesSignal = true
			break
		}
	}

	switch {
	case movieSignal && !seriesSignal:
		v := true
		return format, &v
	case seriesSignal:
		v := false
		return format, &v
	default:
		return format, nil
	}
}

var romanNumerals = []string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"}

// sequelPartGuess maps a filename episode index onto a sequel title for
// movie franchises: file "Movie - 2" becomes "Movie 2" or "Movie II"
// when TMDB knows such a title.
func (r *Resolver) sequelPartGuess(ctx context.Context, match *seriesMatch, parsed parser.Parsed) string {
	if parsed.Episode == nil || *parsed.Episode < 2 || *parsed.Episode > 10 {
		return ""
	}
	if r.clients.TMDB == nil || !r.clients.TMDB.IsConfigured() {
		return ""
	}

	base := providers.StripPartColon(match.title.English)
	results, err := r.clients.TMDB.SearchMovie(ctx, base, "")
	if err != nil {
		return ""
	}

	n := *parsed.Episode
	wantArabic := fmt.Sprintf(" %d", n)
	wantRoman := " " + romanNumerals[n]
	for _, m := range results {
		title := providers.StripPartColon(m.Title)
		if !strings.HasPrefix(strings.ToLower(title), strings.ToLower(firstWords(base, 2))) {
			continue
		}
		if strings.HasSuffix(title, wantArabic) || strings.HasSuffix(title, wantRoman) ||
			strings.Contains(title, wantArabic+":") || strings.Contains(title, fmt.Sprintf("Part %d", n)) {
			return title
		}
	}
	return ""
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
