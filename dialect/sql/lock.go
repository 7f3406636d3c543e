package sql

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// LockRegistry hands out one lock per object. Entries are reference counted
// and removed when the last holder or waiter leaves, so the registry does not
// grow with the number of connections ever seen.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[any]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewLockRegistry returns an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[any]*lockEntry)}
}

// Locks is the process-wide registry used by connection sources.
var Locks = NewLockRegistry()

// Lock acquires the lock of key, waiting until it is free or ctx is done.
// key must be comparable, typically a pointer to a connection.
func (r *LockRegistry) Lock(ctx context.Context, key any) (unlock func(), err error) {
	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		r.locks[key] = e
	}
	e.refs++
	r.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		r.leave(key, e)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			r.leave(key, e)
		})
	}, nil
}

func (r *LockRegistry) leave(key any, e *lockEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.refs--; e.refs == 0 {
		delete(r.locks, key)
	}
}

// Len returns the number of objects currently locked or waited on.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
