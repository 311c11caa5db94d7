package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	// stabilityThreshold is how long a file must stop changing before a
	// scan is triggered for it.
	stabilityThreshold = 2 * time.Second
	// debounceDelay batches bursts of events into one scan.
	debounceDelay = 3 * time.Second
	// restartDelay is the backoff before a crashed watcher restarts.
	restartDelay = 5 * time.Second
)

// ScanFunc is invoked after a debounced batch of changes settles.
type ScanFunc func(ctx context.Context, libPath, username string)

// Watcher watches one user's library path recursively and triggers
// incremental scans when files settle.
type Watcher struct {
	libPath  string
	username string
	scan     ScanFunc
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a watcher for a library path. Call Start to run it.
func New(libPath, username string, scan ScanFunc, logger zerolog.Logger) *Watcher {
	return &Watcher{
		libPath:  libPath,
		username: username,
		scan:     scan,
		logger: logger.With().Str("component", "watcher").
			Str("library", libPath).Str("user", username).Logger(),
		pending: make(map[string]time.Time),
	}
}

// Start runs the watch loop in the background, restarting after errors
// until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		for {
			err := w.run(ctx)
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Dur("restartIn", restartDelay).Msg("watcher stopped, restarting")
			select {
			case <-time.After(restartDelay):
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.libPath); err != nil {
		return err
	}
	w.logger.Info().Msg("watching library")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	// New directories need to be added to the watch set.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, ev.Name); err != nil {
				w.logger.Warn().Err(err).Str("dir", ev.Name).Msg("failed to watch new directory")
			}
		}
	}
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[ev.Name] = time.Now()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, func() { w.flush(ctx) })
}

// flush fires the scan once every pending file has been stable long
// enough; otherwise it re-arms the timer.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	for _, last := range w.pending {
		if wait := stabilityThreshold - now.Sub(last); wait > 0 {
			w.timer = time.AfterFunc(wait+debounceDelay, func() { w.flush(ctx) })
			w.mu.Unlock()
			return
		}
	}
	n := len(w.pending)
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	if n == 0 || ctx.Err() != nil {
		return
	}
	w.logger.Debug().Int("changes", n).Msg("changes settled, scanning")
	w.scan(ctx, w.libPath, w.username)
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == "node_modules" || name == ".git" || name == ".svn" || name == "__pycache__" {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
