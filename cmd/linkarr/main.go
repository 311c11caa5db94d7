package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/linkarr/linkarr/internal/api"
	"github.com/linkarr/linkarr/internal/apply"
	"github.com/linkarr/linkarr/internal/artwork"
	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/logger"
	"github.com/linkarr/linkarr/internal/pace"
	"github.com/linkarr/linkarr/internal/providers/anidb"
	"github.com/linkarr/linkarr/internal/providers/anilist"
	"github.com/linkarr/linkarr/internal/providers/kitsu"
	"github.com/linkarr/linkarr/internal/providers/tmdb"
	"github.com/linkarr/linkarr/internal/providers/tvdb"
	"github.com/linkarr/linkarr/internal/providers/wikipedia"
	"github.com/linkarr/linkarr/internal/render"
	"github.com/linkarr/linkarr/internal/resolver"
	"github.com/linkarr/linkarr/internal/scanner"
	"github.com/linkarr/linkarr/internal/store"
	"github.com/linkarr/linkarr/internal/users"
	"github.com/linkarr/linkarr/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().Int("port", cfg.Server.Port).Str("dataDir", cfg.Data.Dir).Msg("starting linkarr")

	st, err := store.Open(cfg.Data.Dir, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	// The web layer signs cookies with this; generate it once up front so
	// a restart never invalidates sessions.
	if _, err := store.SessionKey(cfg.Data.Dir); err != nil {
		log.Error().Err(err).Msg("failed to initialize session key")
	}

	cache, err := enrich.NewManager(st, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load enrichment cache")
	}

	userSvc := users.NewService(st, log.Logger)

	// Provider credentials come from the shared default profile; per-user
	// keys would need per-user clients, which the pacing layer does not
	// support yet.
	settings := userSvc.Get("")
	paced := pace.New(log.Logger)

	anidbClient := anidb.NewClient(paced, anidb.Credentials{
		Username:      settings.AniDBUsername,
		Password:      settings.AniDBPassword,
		ClientName:    settings.AniDBClientName,
		ClientVersion: strconv.Itoa(settings.AniDBClientVer),
	}, log.Logger)
	clients := resolver.Clients{
		AniDB:   anidbClient,
		AniList: anilist.NewClient(paced, settings.AniListAPIKey, log.Logger),
		TVDB:    tvdb.NewClient(paced, settings.TVDBV4APIKey, settings.TVDBV4UserPIN, log.Logger),
		TMDB:    tmdb.NewClient(paced, settings.TMDBAPIKey, log.Logger),
		Wiki:    wikipedia.NewClient(paced, st, log.Logger),
		Kitsu:   kitsu.NewClient(paced, log.Logger),
	}

	res := resolver.New(cache, st, clients, log.Logger)
	sc := scanner.New(st, cache, log.Logger)
	applier := apply.New(cache, sc, log.Logger)

	aliases, err := render.LoadAliases(cfg.Data.ConfigDir)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load series aliases")
	}

	artworkWorker := artwork.New(st, cache, cfg, userSvc.All,
		clients.AniList, clients.TMDB, clients.AniDB, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := artworkWorker.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start artwork worker")
	}
	defer artworkWorker.Stop()

	watchers := startWatchers(ctx, cfg, userSvc, sc, log)
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	server := api.NewServer(cfg, st, cache, userSvc, sc, res, applier, artworkWorker, aliases, log.Logger)

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	anidbClient.Close(shutdownCtx)
	cache.PersistNow()
	log.Info().Msg("shutdown complete")
}

// startWatchers spins up one folder watcher per user that opted in and
// has a library path.
func startWatchers(ctx context.Context, cfg *config.Config, userSvc *users.Service,
	sc *scanner.Scanner, log *logger.Logger) []*watcher.Watcher {

	var watchers []*watcher.Watcher
	for name, settings := range userSvc.All() {
		if !settings.EnableFolderWatch {
			continue
		}
		libPath := settings.InputPath(cfg)
		if libPath == "" {
			continue
		}
		w := watcher.New(libPath, name, func(ctx context.Context, libPath, username string) {
			if _, err := sc.IncrementalScan(ctx, libPath, username); err != nil {
				log.Warn().Err(err).Str("library", libPath).Msg("watch-triggered scan failed")
			}
		}, log.Logger)
		w.Start(ctx)
		watchers = append(watchers, w)
	}
	return watchers
}
