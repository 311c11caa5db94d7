package scanner

import (
	"errors"
	"sync"
)

// ErrConflict is returned when a scan or refresh is already running for
// the same lock name.
var ErrConflict = errors.New("operation already in progress")

// lockSet is a set of named try-locks. A second acquire of a held name
// fails instead of blocking so callers surface a conflict.
type lockSet struct {
	mu   sync.Mutex
	held map[string]uint64
	gen  uint64
}

func newLockSet() *lockSet {
	return &lockSet{held: make(map[string]uint64)}
}

// acquire takes the named lock or returns ErrConflict. The release
// closure only frees the acquisition it belongs to, so a stale or
// repeated release never unlocks a later holder of the same name.
func (l *lockSet) acquire(name string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] != 0 {
		return nil, ErrConflict
	}
	l.gen++
	token := l.gen
	l.held[name] = token
	return func() {
		l.mu.Lock()
		if l.held[name] == token {
			delete(l.held, name)
		}
		l.mu.Unlock()
	}, nil
}
