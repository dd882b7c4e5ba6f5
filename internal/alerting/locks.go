package alerting

import "sync"

// alertLocks provides per-alert mutual exclusion so that concurrent edits,
// runs and deletes of the same alert are linearized. Locks are refcounted
// and dropped from the map once unused, so the map does not grow with the
// number of alerts ever touched.
type alertLocks struct {
	mu    sync.Mutex
	locks map[string]*alertLock
}

type alertLock struct {
	sync.Mutex
	refs int
}

func newAlertLocks() *alertLocks {
	return &alertLocks{locks: make(map[string]*alertLock)}
}

// Lock acquires the lock for the given alert id and returns the matching
// unlock function.
func (l *alertLocks) Lock(id string) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &alertLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
