package resolver

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/providers/anidb"
)

var anidbEpnoPattern = regexp.MustCompile(`^(\d+)$|^([SCTOP]\d+)$`)

// anidbLookup runs the AniDB segment. Hashing every file is expensive,
// so it only happens when AniDB is the user's first-choice provider or
// the caller forced it.
func (r *Resolver) anidbLookup(ctx context.Context, req Request, order []string, parsed parser.Parsed) (*resolved, error) {
	if !req.ForceHash && firstProvider(order) != providers.AniDB {
		r.logger.Debug().Str("path", req.CanonicalPath).Msg("skipping AniDB hash, not first choice")
		return nil, nil
	}

	lookup, err := r.clients.AniDB.LookupFile(ctx, req.CanonicalPath)
	if err != nil {
		if errors.Is(err, anidb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	cand := anidb.Candidate(lookup)
	res := &resolved{
		season:  parsed.Season,
		episode: parsed.Episode,
		year:    cand.Year,
	}

	res.seriesTitleEnglish = cand.Title.English
	res.seriesTitleRomaji = cand.Title.Romaji
	res.originalSeriesTitle = cand.Title.Native
	res.seriesTitleExact = cand.Title.Best()
	res.seriesTitle = providers.StripSeasonSuffix(res.seriesTitleExact)
	res.title = res.seriesTitle

	// AniDB's epno is authoritative: plain digits are the episode
	// number, a letter prefix (S2, C1, T1) is a special kept verbatim.
	file := lookup.File
	if m := anidbEpnoPattern.FindStringSubmatch(file.EpisodeNumber); m != nil {
		if m[1] != "" {
			if n, err := strconv.Atoi(m[1]); err == nil {
				res.episode = &n
			}
		} else {
			res.episodeCode = m[2]
		}
	}

	title := file.EpisodeName
	if title == "" || providers.IsPlaceholderTitle(title) || !providers.IsLatin(title) {
		if file.EpisodeRomaji != "" {
			title = file.EpisodeRomaji
		}
	}
	res.episodeTitle = title

	if lookup.Anime != nil {
		res.mediaFormat = lookup.Anime.Type
		if isAnidbMovie(lookup.Anime.Type) {
			v := true
			res.isMovie = &v
		} else if lookup.Anime.Type != "" {
			v := false
			res.isMovie = &v
		}
	}
	if res.year == "" {
		res.year = parsed.Year
	}

	res.block = enrich.ProviderBlock{
		Provider:            providers.AniDB,
		ID:                  cand.ID,
		Title:               res.title,
		Year:                res.year,
		Season:              res.season,
		Episode:             res.episode,
		EpisodeTitle:        res.episodeTitle,
		Matched:             true,
		Source:              enrich.FlexString(cand.SourceDetail),
		SeriesTitleEnglish:  res.seriesTitleEnglish,
		SeriesTitleRomaji:   res.seriesTitleRomaji,
		SeriesTitleExact:    res.seriesTitleExact,
		OriginalSeriesTitle: res.originalSeriesTitle,
		Raw:                 cand.Raw,
		Sources: &enrich.Sources{
			Series:  &enrich.SourceRef{ID: cand.ID, Display: providers.AniDB, Detail: cand.SourceDetail},
			Episode: &enrich.SourceRef{ID: strconv.Itoa(file.EID), Display: providers.AniDB, Detail: "AniDB eid " + strconv.Itoa(file.EID)},
		},
	}
	return res, nil
}

func isAnidbMovie(animeType string) bool {
	switch animeType {
	case "Movie", "MOVIE":
		return true
	}
	return false
}
