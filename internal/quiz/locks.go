package quiz

import "sync"

// UserLocks serializes event handling per user while leaving different
// users fully parallel. The session store's read-step-write cycle is
// not atomic, so drivers must hold the user's lock across a Step call.
//
// Lock entries are never evicted; a mutex per seen user is a few dozen
// bytes, bounded by the audience size.
type UserLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the per-user mutex and returns its unlock function.
func (l *UserLocks) Lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
