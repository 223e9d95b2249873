package sync

import "sync"

// userLocks serializes sync attempts per tracked user, so a manual
// registrar trigger can never interleave writes with a scheduled batch
// run for the same user. The map is bounded by the tracked set size and
// is never shrunk.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the per-user lock is held and returns the unlock.
func (l *userLocks) acquire(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
