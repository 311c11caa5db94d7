package resolver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/providers/anidb"
	"github.com/linkarr/linkarr/internal/providers/anilist"
	"github.com/linkarr/linkarr/internal/providers/kitsu"
	"github.com/linkarr/linkarr/internal/providers/tmdb"
	"github.com/linkarr/linkarr/internal/providers/tvdb"
	"github.com/linkarr/linkarr/internal/providers/wikipedia"
	"github.com/linkarr/linkarr/internal/store"
)

// Clients bundles the provider adapters the resolver drives. Any client
// may be nil; nil or unconfigured providers are skipped.
type Clients struct {
	AniDB   *anidb.Client
	AniList *anilist.Client
	TVDB    *tvdb.Client
	TMDB    *tmdb.Client
	Wiki    *wikipedia.Client
	Kitsu   *kitsu.Client
}

// Request is one resolution job.
type Request struct {
	CanonicalPath      string
	Username           string
	LibraryRoot        string
	ProviderOrder      []string
	Force              bool
	ForceHash          bool
	SkipAnimeProviders bool
}

// Resolver turns a canonical file path into a merged metadata entry by
// walking the configured providers in order.
type Resolver struct {
	cache   *enrich.Manager
	store   *store.Store
	clients Clients
	logger  zerolog.Logger
}

// New creates a resolver.
func New(cache *enrich.Manager, st *store.Store, clients Clients, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cache:   cache,
		store:   st,
		clients: clients,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve enriches one file. It always returns an entry: on total
// provider failure the parsed fields still populate it, and an internal
// panic degrades to a minimal record instead of crashing the caller.
func (r *Resolver) Resolve(ctx context.Context, req Request) (entry *enrich.Entry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("path", req.CanonicalPath).Msg("resolver panicked")
			entry = r.cache.Update(req.CanonicalPath, func(e *enrich.Entry) {
				e.Title = filepath.Base(req.CanonicalPath)
				e.SourceID = "error:fatal"
				e.Timestamp = time.Now()
			})
			err = nil
		}
	}()

	path := req.CanonicalPath
	cached := r.cache.Get(path)

	if cached != nil && !req.Force {
		if cached.ProviderFailure != nil {
			skips := r.cache.MarkFailureSkip(path)
			r.logger.Debug().Str("path", path).Int("skipCount", skips).Msg("skipping memoized failure")
			return r.cache.Get(path), nil
		}
		if cached.Provider.Complete() {
			return cached, nil
		}
	}

	parsed := parser.Parse(filepath.Base(path))
	cands := seriesCandidates(req.LibraryRoot, path, parsed)

	order := r.providerOrder(req, cands)
	segments := segmentProviders(order)

	var lastErr error
	for _, segment := range segments {
		var res *resolved
		var segErr error
		if len(segment) == 1 && segment[0] == providers.AniDB {
			res, segErr = r.anidbLookup(ctx, req, order, parsed)
		} else {
			res, segErr = r.metaLookup(ctx, segment, req, cands, parsed)
		}
		if segErr != nil {
			lastErr = segErr
			continue
		}
		if res != nil {
			r.cache.ClearFailure(path)
			out := r.cache.Update(path, func(e *enrich.Entry) {
				res.applyTo(e, parsed)
			})
			return out, nil
		}
	}

	// Nothing matched; memoize and fall back to parsed data.
	reason, code, msg := enrich.FailNoMatch, "", ""
	if lastErr != nil {
		reason, code, msg = enrich.FailError, "provider-error", lastErr.Error()
	}
	r.cache.RecordFailure(path, firstProvider(order), reason, code, msg)
	out := r.cache.Update(path, func(e *enrich.Entry) {
		e.Parsed = &parsed
		e.Title = parsed.Title
		e.Season = parsed.Season
		e.Episode = parsed.Episode
		e.EpisodeRange = parsed.EpisodeRange
		e.EpisodeTitle = parsed.EpisodeTitle
		e.Year = parsed.Year
		e.Timestamp = time.Now()
	})
	return out, nil
}

// providerOrder filters the requested order down to usable providers and
// moves manual-ID providers to the front.
func (r *Resolver) providerOrder(req Request, cands candidates) []string {
	order := req.ProviderOrder
	if len(order) == 0 {
		order = []string{providers.AniDB, providers.AniList, providers.TVDB, providers.TMDB}
	}

	usable := make([]string, 0, len(order))
	for _, p := range order {
		if req.SkipAnimeProviders && (p == providers.AniDB || p == providers.AniList || p == providers.Kitsu) {
			continue
		}
		if !r.configured(p) {
			continue
		}
		usable = append(usable, p)
	}

	manual, _ := r.ManualSeriesIDs(cands.primary())
	if !manual.Empty() {
		front := make([]string, 0, len(usable))
		rest := make([]string, 0, len(usable))
		for _, p := range usable {
			if manual.Has(p) {
				front = append(front, p)
			} else {
				rest = append(rest, p)
			}
		}
		usable = append(front, rest...)
	}
	return usable
}

func (r *Resolver) configured(provider string) bool {
	switch provider {
	case providers.AniDB:
		return r.clients.AniDB != nil && r.clients.AniDB.IsConfigured()
	case providers.AniList:
		return r.clients.AniList != nil
	case providers.TVDB:
		return r.clients.TVDB != nil && r.clients.TVDB.IsConfigured()
	case providers.TMDB:
		return r.clients.TMDB != nil && r.clients.TMDB.IsConfigured()
	case providers.Wikipedia:
		return r.clients.Wiki != nil
	case providers.Kitsu:
		return r.clients.Kitsu != nil
	default:
		return false
	}
}

// segmentProviders splits the order at AniDB boundaries: AniDB runs in
// its own segment, everything between batches into one lookup.
func segmentProviders(order []string) [][]string {
	var segments [][]string
	var batch []string
	for _, p := range order {
		if p == providers.AniDB {
			if len(batch) > 0 {
				segments = append(segments, batch)
				batch = nil
			}
			segments = append(segments, []string{providers.AniDB})
			continue
		}
		batch = append(batch, p)
	}
	if len(batch) > 0 {
		segments = append(segments, batch)
	}
	return segments
}

func firstProvider(order []string) string {
	if len(order) == 0 {
		return ""
	}
	return order[0]
}
