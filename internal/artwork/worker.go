package artwork

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/providers"
	"github.com/linkarr/linkarr/internal/providers/anidb"
	"github.com/linkarr/linkarr/internal/providers/anilist"
	"github.com/linkarr/linkarr/internal/providers/tmdb"
	"github.com/linkarr/linkarr/internal/store"
)

const (
	tickInterval  = 25 * time.Second
	perTickBudget = 3
	fetchCooldown = 3 * time.Second
)

// Image is one cached artwork record, keyed by
// "<outputRoot>::<normalizedSeriesName>".
type Image struct {
	Provider  string    `json:"provider"`
	ImageURL  string    `json:"imageUrl"`
	Summary   string    `json:"summary,omitempty"`
	MediaID   string    `json:"mediaId,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// UsersFn supplies the current per-user settings.
type UsersFn func() map[string]config.UserSettings

// Worker caches one artwork image per (output bucket, applied series).
type Worker struct {
	store   *store.Store
	cache   *enrich.Manager
	server  *config.Config
	users   UsersFn
	anilist *anilist.Client
	tmdb    *tmdb.Client
	anidb   *anidb.Client
	logger  zerolog.Logger

	sched gocron.Scheduler

	mu       sync.Mutex
	inFlight map[string]bool
	lastTry  map[string]time.Time
}

// New creates the worker. Provider clients may be nil.
func New(st *store.Store, cache *enrich.Manager, server *config.Config, users UsersFn,
	al *anilist.Client, tm *tmdb.Client, ad *anidb.Client, logger zerolog.Logger) *Worker {
	return &Worker{
		store:    st,
		cache:    cache,
		server:   server,
		users:    users,
		anilist:  al,
		tmdb:     tm,
		anidb:    ad,
		logger:   logger.With().Str("component", "artwork").Logger(),
		inFlight: make(map[string]bool),
		lastTry:  make(map[string]time.Time),
	}
}

// Start schedules the background loop.
func (w *Worker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(tickInterval),
		gocron.NewTask(func() { w.tick(ctx) }),
	)
	if err != nil {
		return err
	}
	sched.Start()
	w.sched = sched
	w.logger.Info().Dur("interval", tickInterval).Msg("artwork worker started")
	return nil
}

// Stop shuts the scheduler down.
func (w *Worker) Stop() {
	if w.sched != nil {
		_ = w.sched.Shutdown()
	}
}

// tick fetches up to the per-tick budget of missing images across all
// users.
func (w *Worker) tick(ctx context.Context) {
	fetched := 0
	for username, settings := range w.users() {
		for _, job := range w.pending(username, settings) {
			if fetched >= perTickBudget {
				return
			}
			if err := w.FetchOne(ctx, username, job.outputKey, job.series); err == nil {
				fetched++
			}
		}
	}
}

type fetchJob struct {
	outputKey string
	series    string
}

// pending lists (bucket, series) pairs that have applied entries but no
// cached image yet.
func (w *Worker) pending(username string, settings config.UserSettings) []fetchJob {
	var jobs []fetchJob
	seen := make(map[string]bool)

	for _, entry := range w.cache.Entries() {
		if !entry.Applied || len(entry.AppliedTo) == 0 {
			continue
		}
		series := displaySeries(entry)
		if series == "" {
			continue
		}
		outputKey := w.bucketFor(entry.AppliedTo.First(), settings)
		key := CacheKey(outputKey, series)
		if seen[key] {
			continue
		}
		seen[key] = true

		var img Image
		ok, err := w.store.Get(store.MapImages, key, &img)
		if err == nil && ok {
			continue
		}
		jobs = append(jobs, fetchJob{outputKey: outputKey, series: series})
	}
	return jobs
}

// bucketFor matches an applied target against the user's output
// folders; the longest matching root wins.
func (w *Worker) bucketFor(target string, settings config.UserSettings) string {
	best := settings.OutputPath(w.server)
	for _, f := range settings.OutputFolders {
		if strings.HasPrefix(target, f.Path) && len(f.Path) > len(best) {
			best = f.Path
		}
	}
	return best
}

// CacheKey composes the image cache key.
func CacheKey(outputRoot, series string) string {
	return outputRoot + "::" + normalizeSeries(series)
}

func normalizeSeries(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// FetchOne fetches and caches the image for one (bucket, series) pair.
// Per-key locks and a short cooldown suppress concurrent and rapid
// retries.
func (w *Worker) FetchOne(ctx context.Context, username, outputKey, series string) error {
	lockKey := fmt.Sprintf("%s::%s::%s", username, outputKey, normalizeSeries(series))

	w.mu.Lock()
	if w.inFlight[lockKey] {
		w.mu.Unlock()
		return fmt.Errorf("fetch already in flight for %s", series)
	}
	if last, ok := w.lastTry[lockKey]; ok && time.Since(last) < fetchCooldown {
		w.mu.Unlock()
		return fmt.Errorf("cooldown active for %s", series)
	}
	w.inFlight[lockKey] = true
	w.lastTry[lockKey] = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.inFlight, lockKey)
		w.mu.Unlock()
	}()

	settings := w.users()[username]
	provider := settings.ApprovedSeriesSources[outputKey]
	if provider == "" {
		provider = providers.AniList
	}

	img, err := w.fetch(ctx, provider, series)
	if err != nil {
		w.logger.Warn().Err(err).Str("series", series).Str("provider", provider).Msg("artwork fetch failed")
		return err
	}

	key := CacheKey(outputKey, series)
	if err := w.store.Set(store.MapImages, key, img); err != nil {
		return err
	}
	w.logger.Info().Str("series", series).Str("provider", img.Provider).Msg("cached artwork")
	return nil
}

// FetchAll fetches images for every pending pair of one user,
// ignoring the per-tick budget.
func (w *Worker) FetchAll(ctx context.Context, username string) int {
	settings := w.users()[username]
	n := 0
	for _, job := range w.pending(username, settings) {
		if err := w.FetchOne(ctx, username, job.outputKey, job.series); err == nil {
			n++
		}
	}
	return n
}

// List returns all cached images.
func (w *Worker) List() (map[string]Image, error) {
	return store.LoadMap[Image](w.store, store.MapImages)
}

// ClearCache drops every cached image.
func (w *Worker) ClearCache() error {
	keys, err := w.store.Keys(store.MapImages)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.store.Delete(store.MapImages, k); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context, provider, series string) (Image, error) {
	switch provider {
	case providers.TMDB:
		return w.fetchTMDB(ctx, series)
	case providers.AniDB:
		return w.fetchAniDB(ctx, series)
	default:
		return w.fetchAniList(ctx, series)
	}
}

func (w *Worker) fetchAniList(ctx context.Context, series string) (Image, error) {
	if w.anilist == nil {
		return Image{}, fmt.Errorf("anilist client not available")
	}
	results, err := w.anilist.Search(ctx, series)
	if err != nil {
		return Image{}, err
	}
	if len(results) == 0 {
		return Image{}, anilist.ErrNotFound
	}
	m := results[0]
	url := m.CoverImage.Large
	if url == "" {
		url = m.CoverImage.Medium
	}
	if url == "" {
		url = m.BannerImage
	}
	if url == "" {
		return Image{}, fmt.Errorf("anilist media %d has no image", m.ID)
	}
	return Image{
		Provider:  providers.AniList,
		ImageURL:  url,
		Summary:   m.Title.English,
		MediaID:   strconv.Itoa(m.ID),
		FetchedAt: time.Now(),
	}, nil
}

func (w *Worker) fetchTMDB(ctx context.Context, series string) (Image, error) {
	if w.tmdb == nil || !w.tmdb.IsConfigured() {
		return Image{}, tmdb.ErrAPIKeyMissing
	}
	results, err := w.tmdb.SearchTV(ctx, series)
	if err != nil {
		return Image{}, err
	}
	if len(results) == 0 || results[0].PosterPath == "" {
		return Image{}, tmdb.ErrNotFound
	}
	tv := results[0]
	return Image{
		Provider:  providers.TMDB,
		ImageURL:  tmdb.PosterURL(tv.PosterPath),
		Summary:   tv.Overview,
		MediaID:   strconv.Itoa(tv.ID),
		FetchedAt: time.Now(),
	}, nil
}

// fetchAniDB locates the AID through AniList external links, then asks
// the AniDB HTTP API for the picture. When AniDB carries no image the
// AniList cover for the same search doubles as a verified fallback.
func (w *Worker) fetchAniDB(ctx context.Context, series string) (Image, error) {
	if w.anidb == nil {
		return Image{}, fmt.Errorf("anidb client not available")
	}

	aid, err := w.findAID(ctx, series)
	if err != nil {
		return Image{}, err
	}

	anime, err := w.anidb.AnimeByAID(ctx, aid)
	if err != nil {
		return Image{}, err
	}
	if url := anime.PictureURL(); url != "" {
		return Image{
			Provider:  providers.AniDB,
			ImageURL:  url,
			Summary:   anime.Titles.Best(),
			MediaID:   strconv.Itoa(aid),
			FetchedAt: time.Now(),
		}, nil
	}

	img, err := w.fetchAniList(ctx, series)
	if err != nil {
		return Image{}, fmt.Errorf("anidb %d has no picture and anilist fallback failed: %w", aid, err)
	}
	return img, nil
}

// findAID resolves an AniDB anime ID from a series title via AniList
// external links.
func (w *Worker) findAID(ctx context.Context, series string) (int, error) {
	if w.anilist == nil {
		return 0, fmt.Errorf("no AID source available")
	}
	results, err := w.anilist.Search(ctx, series)
	if err != nil {
		return 0, err
	}
	for _, m := range results {
		for _, link := range m.ExternalLinks {
			if !strings.Contains(link.URL, "anidb.net") {
				continue
			}
			if aid := aidFromURL(link.URL); aid > 0 {
				return aid, nil
			}
		}
	}
	return 0, fmt.Errorf("no AniDB link found for %q", series)
}

// aidFromURL extracts the AID from anidb.net URL forms like
// /anime/123 and /a123.
func aidFromURL(url string) int {
	for _, marker := range []string{"/anime/", "aid=", "/a"} {
		i := strings.LastIndex(url, marker)
		if i < 0 {
			continue
		}
		digits := url[i+len(marker):]
		end := 0
		for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
			end++
		}
		if end > 0 {
			n, _ := strconv.Atoi(digits[:end])
			return n
		}
	}
	return 0
}

func displaySeries(e *enrich.Entry) string {
	if e.SeriesTitleEnglish != "" {
		return e.SeriesTitleEnglish
	}
	if e.SeriesTitle != "" {
		return e.SeriesTitle
	}
	return e.Title
}
