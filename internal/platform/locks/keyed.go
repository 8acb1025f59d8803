// Package locks provides record-scoped mutual exclusion for the settlement
// engines. Every mutating operation on an escrow, plan, or parcel runs as one
// indivisible step under the record's lock, so two concurrent approvals or
// claims cannot race into a double-settlement or double-claim.
package locks

import "sync"

// Keyed hands out one mutex per key. Locks are never evicted; the key space
// (escrow/plan handles) grows slowly and a stale mutex is a few dozen bytes.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. The returned
// function releases it.
func (k *Keyed) Lock(key string) (unlock func()) {
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
