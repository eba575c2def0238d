package engine

import "sync"

// keyedLocks provides per-containerName mutual exclusion around the
// sync→build→replace sequence. Concurrent webhook deliveries for the same
// target would otherwise race on the working-copy directory and the
// remove+start pair; deliveries for different targets stay independent.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for key and returns its unlock function.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
