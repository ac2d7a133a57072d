package workbook

import "sync"

// keyedLocks serializes operations per key. The command log is the only
// mutable shared resource of a session, so one mutex per session id keeps
// purge-then-append and deactivate-last atomic without blocking other
// sessions.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the key and returns the unlock func.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
