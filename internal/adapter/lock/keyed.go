// Package lock implements ports.Locker in-process and on top of Redis.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var _ ports.Locker = (*Keyed)(nil)

// Keyed serializes callers that share a key within one process. Entries
// are dropped once no caller references them.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyed returns an empty keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*keyedEntry)}
}

// WithLock runs fn while holding key. Waiting stops when ctx is done.
func (k *Keyed) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := k.ref(key)
	defer k.unref(key, e)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (k *Keyed) ref(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// size reports how many keys are currently tracked.
func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
