package chronodm

import "sync"

// ownerLocks serialises saves, migrations, and deletions of the same record
// within this process. Entries are reference counted and dropped when idle.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[OwnerRef]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

var recordLocks = &ownerLocks{locks: map[OwnerRef]*ownerLock{}}

// lock blocks until the owner's lock is held and returns its release func.
func (l *ownerLocks) lock(owner OwnerRef) func() {
	l.mu.Lock()
	ol, ok := l.locks[owner]
	if !ok {
		ol = &ownerLock{}
		l.locks[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, owner)
		}
		l.mu.Unlock()
	}
}

// held reports how many callers hold or wait on the owner's lock.
func (l *ownerLocks) held(owner OwnerRef) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ol, ok := l.locks[owner]; ok {
		return ol.refs
	}
	return 0
}
