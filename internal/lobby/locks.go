package lobby

import "sync"

// keyedMutex serializes all mutations to one session within this instance.
// Entries are never removed; the per-session footprint is one mutex and
// sessions are bounded by lifetime of the process's working set.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock blocks until the session lock is held and returns the unlock func.
func (k *keyedMutex) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

// TryLock acquires the session lock only if free. The clock scheduler uses
// this: a tick that collides with an in-flight move skips the decrement
// rather than queue behind it.
func (k *keyedMutex) TryLock(key string) (func(), bool) {
	m := k.get(key)
	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}
