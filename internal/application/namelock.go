package application

import "sync"

// nameLocks hands out one mutex per key and forgets keys nobody holds.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*nameLock)}
}

// lock blocks until the caller holds key and returns the matching unlock func.
func (l *nameLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	nl, ok := l.locks[key]
	if !ok {
		nl = &nameLock{}
		l.locks[key] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()

	return func() {
		nl.mu.Unlock()

		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// held returns the number of keys currently tracked.
func (l *nameLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
