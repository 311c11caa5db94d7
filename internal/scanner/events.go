package scanner

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/store"
)

const eventRingMax = 200

// EventRing is the bounded hide-event log. Events are persisted so
// clients can reconcile across restarts.
type EventRing struct {
	store  *store.Store
	logger zerolog.Logger

	mu     sync.Mutex
	events []HideEvent
	seq    int64
}

// NewEventRing loads persisted events.
func NewEventRing(st *store.Store, logger zerolog.Logger) *EventRing {
	r := &EventRing{
		store:  st,
		logger: logger.With().Str("component", "hide-events").Logger(),
	}
	stored, err := store.LoadMap[HideEvent](st, store.MapHideEvents)
	if err != nil {
		r.logger.Warn().Err(err).Msg("hide events load failed")
		return r
	}
	for key, ev := range stored {
		r.events = append(r.events, ev)
		if n, err := strconv.ParseInt(key, 10, 64); err == nil && n > r.seq {
			r.seq = n
		}
	}
	sort.Slice(r.events, func(i, j int) bool { return r.events[i].TS.Before(r.events[j].TS) })
	if len(r.events) > eventRingMax {
		r.events = r.events[len(r.events)-eventRingMax:]
	}
	return r
}

// Push appends an event, evicting the oldest past the ring bound.
func (r *EventRing) Push(ev HideEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
	if len(r.events) > eventRingMax {
		r.events = r.events[len(r.events)-eventRingMax:]
	}
	r.seq++
	if err := r.store.Set(store.MapHideEvents, strconv.FormatInt(r.seq, 10), ev); err != nil {
		r.logger.Warn().Err(err).Msg("hide event persist failed")
	}
}

// Since returns all events at or after ts, oldest first.
func (r *EventRing) Since(ts time.Time) []HideEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []HideEvent
	for _, ev := range r.events {
		if !ev.TS.Before(ts) {
			out = append(out, ev)
		}
	}
	return out
}
