// Package multilock provides a keyed mutual exclusion primitive.
//
// Each key gets its own lock which is created on first acquisition and
// released from the map as soon as no holder or waiter references it
// anymore, so the map only ever contains keys that are currently in use.
package multilock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// MultiLock is a map of locks identified by a comparable key.
// The zero value is not usable, create instances with New.
type MultiLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

// New returns an empty MultiLock.
func New[K comparable]() *MultiLock[K] {
	return &MultiLock[K]{
		locks: make(map[K]*entry),
	}
}

// Lock blocks until the lock for key is acquired or ctx is done.
//
// On success the returned function releases the lock. Calling it more
// than once has no effect.
func (m *MultiLock[K]) Lock(ctx context.Context, key K) (unlock func(), err error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	unlock = func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}

	return unlock, nil
}

// Len returns the number of keys which are currently held or waited for.
func (m *MultiLock[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *MultiLock[K]) release(key K, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}
