package enrich

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/store"
)

// Manager owns the enrichment cache and the rendered-target index. All
// writes funnel through it so the applied/hidden flags survive merges
// and persistence stays debounced.
type Manager struct {
	store  *store.Store
	logger zerolog.Logger

	mu       sync.Mutex
	entries  map[string]*Entry
	rendered map[string]RenderedRow
	deb      *store.Debouncer
}

// NewManager loads the cached maps and wires debounced persistence.
func NewManager(st *store.Store, logger zerolog.Logger) (*Manager, error) {
	entries, err := store.LoadMap[*Entry](st, store.MapEnrich)
	if err != nil {
		return nil, err
	}
	rendered, err := store.LoadMap[RenderedRow](st, store.MapRendered)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:    st,
		logger:   logger.With().Str("component", "enrich").Logger(),
		entries:  entries,
		rendered: rendered,
	}
	if m.entries == nil {
		m.entries = make(map[string]*Entry)
	}
	if m.rendered == nil {
		m.rendered = make(map[string]RenderedRow)
	}
	m.deb = store.NewDebouncer(0, m.persist)
	return m, nil
}

// Get returns a copy of the entry for a canonical path, or nil.
func (m *Manager) Get(key string) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEntry(m.entries[key])
}

// Len reports the number of cached entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns a snapshot copy of the whole cache.
func (m *Manager) Entries() map[string]*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = cloneEntry(v)
	}
	return out
}

// Update merges a mutation onto the entry for key. The mutation sees a
// copy of the prior entry (or a fresh one); applied, hidden, appliedAt,
// appliedTo, metadataFilename and renderedName are carried forward from
// the prior value regardless of what the mutation did, and a matched
// provider clears any memoized failure. The result is normalized and
// persistence scheduled.
func (m *Manager) Update(key string, mutate func(*Entry)) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	prior := m.entries[key]
	work := cloneEntry(prior)
	if work == nil {
		work = &Entry{}
	}
	mutate(work)

	if prior != nil {
		work.Applied = prior.Applied
		work.Hidden = prior.Hidden
		work.AppliedAt = prior.AppliedAt
		work.AppliedTo = prior.AppliedTo
		if prior.MetadataFilename != "" {
			work.MetadataFilename = prior.MetadataFilename
		}
		if prior.RenderedName != "" {
			work.RenderedName = prior.RenderedName
		}
	}
	if work.Provider != nil && work.Provider.Matched {
		work.ProviderFailure = nil
	}
	Normalize(work)
	work.CachedAt = time.Now()

	m.entries[key] = work
	m.deb.Schedule()
	return cloneEntry(work)
}

// MarkApplied records a successful hardlink. It is the one writer
// allowed to set the applied flags.
func (m *Manager) MarkApplied(key, target, renderedName, metadataFilename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil {
		e = &Entry{}
		m.entries[key] = e
	}
	now := time.Now()
	e.Applied = true
	e.Hidden = true
	e.AppliedAt = &now
	if !containsPath(e.AppliedTo, target) {
		e.AppliedTo = append(e.AppliedTo, target)
	}
	e.RenderedName = renderedName
	e.MetadataFilename = metadataFilename
	m.deb.Schedule()
}

// ClearApplied is the unapprove path: it resets the applied flags the
// Update merge would otherwise preserve.
func (m *Manager) ClearApplied(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil {
		return
	}
	e.Applied = false
	e.Hidden = false
	e.AppliedAt = nil
	e.AppliedTo = nil
	e.RenderedName = ""
	e.MetadataFilename = ""
	m.deb.Schedule()
}

// RecordFailure memoizes a provider failure for key, incrementing the
// attempt count across calls.
func (m *Manager) RecordFailure(key, provider, reason, code, lastError string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil {
		e = &Entry{}
		m.entries[key] = e
	}
	now := time.Now()
	f := e.ProviderFailure
	if f == nil {
		f = &ProviderFailure{FirstAttemptAt: now}
		e.ProviderFailure = f
	}
	f.Provider = provider
	f.Reason = reason
	f.Code = code
	f.LastError = lastError
	f.AttemptCount++
	f.LastAttemptAt = now
	m.deb.Schedule()
}

// MarkFailureSkip bumps the skip counter on an existing failure and
// returns the new count.
func (m *Manager) MarkFailureSkip(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil || e.ProviderFailure == nil {
		return 0
	}
	e.ProviderFailure.SkipCount++
	e.ProviderFailure.LastSkipAt = time.Now()
	m.deb.Schedule()
	return e.ProviderFailure.SkipCount
}

// ClearFailure drops the memoized failure for key.
func (m *Manager) ClearFailure(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.entries[key]; e != nil && e.ProviderFailure != nil {
		e.ProviderFailure = nil
		m.deb.Schedule()
	}
}

// RemoveIfUnapplied deletes the entry for key unless it is applied or
// hidden. Reports whether a delete happened.
func (m *Manager) RemoveIfUnapplied(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if e == nil || e.Applied || e.Hidden {
		return false
	}
	delete(m.entries, key)
	m.deb.Schedule()
	return true
}

// Sweep removes entries whose source file no longer exists and which
// are neither applied nor hidden, along with any rendered-index rows
// they produced. Returns the number of removed entries.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if e.Applied || e.Hidden {
			continue
		}
		if _, err := os.Stat(key); err == nil {
			continue
		}
		delete(m.entries, key)
		for target, row := range m.rendered {
			if row.Source == key {
				delete(m.rendered, target)
			}
		}
		removed++
	}
	if removed > 0 {
		m.deb.Schedule()
	}
	m.logger.Info().Int("removed", removed).Msg("ENRICH_SWEEP")
	return removed
}

// RenderedFor looks up the rendered-index row for a hardlink target.
func (m *Manager) RenderedFor(target string) (RenderedRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rendered[target]
	return row, ok
}

// SetRendered upserts a rendered-index row.
func (m *Manager) SetRendered(target string, row RenderedRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rendered[target] = row
	m.deb.Schedule()
}

// DeleteRendered drops the row for a target.
func (m *Manager) DeleteRendered(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rendered, target)
	m.deb.Schedule()
}

// PersistNow flushes pending writes synchronously. Called on shutdown
// and after critical operations.
func (m *Manager) PersistNow() {
	m.deb.Flush()
}

func (m *Manager) persist() {
	m.mu.Lock()
	entries := make(map[string]*Entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	rendered := make(map[string]RenderedRow, len(m.rendered))
	for k, v := range m.rendered {
		rendered[k] = v
	}
	m.mu.Unlock()

	if err := store.ReplaceMap(m.store, store.MapEnrich, entries); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist enrich cache")
	}
	if err := store.ReplaceMap(m.store, store.MapRendered, rendered); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist rendered index")
	}
}

func containsPath(list PathList, p string) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Parsed != nil {
		p := *e.Parsed
		out.Parsed = &p
	}
	if e.Provider != nil {
		b := *e.Provider
		if e.Provider.Season != nil {
			s := *e.Provider.Season
			b.Season = &s
		}
		if e.Provider.Episode != nil {
			n := *e.Provider.Episode
			b.Episode = &n
		}
		out.Provider = &b
	}
	if e.ProviderFailure != nil {
		f := *e.ProviderFailure
		out.ProviderFailure = &f
	}
	if e.Season != nil {
		s := *e.Season
		out.Season = &s
	}
	if e.Episode != nil {
		n := *e.Episode
		out.Episode = &n
	}
	if e.IsMovie != nil {
		v := *e.IsMovie
		out.IsMovie = &v
	}
	if e.AppliedAt != nil {
		t := *e.AppliedAt
		out.AppliedAt = &t
	}
	if e.AppliedTo != nil {
		out.AppliedTo = append(PathList(nil), e.AppliedTo...)
	}
	return &out
}
