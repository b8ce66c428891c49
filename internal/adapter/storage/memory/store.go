// Package memory is an in-process implementation of the ledger ports.
//
// Every account and loan carries its own semaphore. Outside a unit of work
// an operation holds the semaphore only for its own duration. Inside
// WithinTx, written records stay locked until the unit ends, and every
// mutation pushes its inverse onto an undo journal that runs on failure.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var (
	_ ports.Transactor        = (*Store)(nil)
	_ ports.AccountRepository = (*Accounts)(nil)
	_ ports.LoanRepository    = (*Loans)(nil)
)

// Store holds all in-memory state. Accounts and Loans are views over it.
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*slot[accountState]
	loans    map[uuid.UUID]*slot[loanState]

	jobsMu sync.Mutex
	jobs   []*jobRecord

	idemMu sync.Mutex
	idem   map[string]ports.CachedResponse

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*slot[accountState]),
		loans:    make(map[uuid.UUID]*slot[loanState]),
		idem:     make(map[string]ports.CachedResponse),
		now:      time.Now,
	}
}

// Accounts returns the account repository backed by s.
func (s *Store) Accounts() *Accounts { return &Accounts{s: s} }

// Loans returns the loan repository backed by s.
func (s *Store) Loans() *Loans { return &Loans{s: s} }

// slot is a record guarded by a context-aware binary semaphore.
type slot[T any] struct {
	sem chan struct{}
	val T
	// dead is set, under the lock, when the create that published the slot
	// is rolled back.
	dead bool
}

func newSlot[T any](v T) *slot[T] {
	return &slot[T]{sem: make(chan struct{}, 1), val: v}
}

func (sl *slot[T]) lock(ctx context.Context) error {
	select {
	case sl.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sl *slot[T]) unlock() { <-sl.sem }

var errGone = errors.New("record was rolled back")

// publish makes a freshly created sl visible through put. Inside a unit the
// slot is locked before it is published and stays locked until the unit
// ends, so nothing outside the unit sees an uncommitted record. On rollback
// the slot is unpublished through remove and marked dead.
func publish[T any](ctx context.Context, sl *slot[T], put func() error, remove func()) error {
	t := txFrom(ctx)
	if t != nil {
		sl.sem <- struct{}{}
	}
	if err := put(); err != nil {
		if t != nil {
			sl.unlock()
		}
		return err
	}
	if t != nil {
		t.held[sl] = sl.unlock
	}
	t.record(func() {
		sl.dead = true
		remove()
	})
	return nil
}

type txKey struct{}

// tx is the state of one unit of work. It is owned by a single goroutine.
type tx struct {
	held     map[any]func()
	undo     []func()
	onCommit []func()
}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithinTx implements ports.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if outer := txFrom(ctx); outer != nil {
		return outer.savepoint(ctx, fn)
	}

	t := &tx{held: make(map[any]func())}
	ctx = context.WithValue(ctx, txKey{}, t)

	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
			return
		}
		t.commit()
	}()

	return fn(ctx)
}

// savepoint runs fn inside t and, on failure, undoes only what fn did.
// Locks taken by fn stay held until the outer unit ends.
func (t *tx) savepoint(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	undoMark, commitMark := len(t.undo), len(t.onCommit)

	defer func() {
		if p := recover(); p != nil {
			t.rollbackTo(undoMark, commitMark)
			panic(p)
		}
		if err != nil {
			t.rollbackTo(undoMark, commitMark)
		}
	}()

	return fn(ctx)
}

func (t *tx) rollbackTo(undoMark, commitMark int) {
	for i := len(t.undo) - 1; i >= undoMark; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:undoMark]
	t.onCommit = t.onCommit[:commitMark]
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.release()
}

func (t *tx) commit() {
	t.release()
	for _, f := range t.onCommit {
		f()
	}
}

func (t *tx) release() {
	for _, unlock := range t.held {
		unlock()
	}
	t.held = nil
	t.undo = nil
}

func (t *tx) record(undo func()) {
	if t != nil {
		t.undo = append(t.undo, undo)
	}
}

// acquire locks sl for the caller. With hold set and a unit in ctx the lock
// is kept until the unit ends; otherwise the returned release must be called.
func acquire[T any](ctx context.Context, sl *slot[T], hold bool) (release func(), err error) {
	noop := func() {}

	t := txFrom(ctx)
	if t != nil {
		if _, ok := t.held[sl]; ok {
			return noop, nil
		}
	}

	if err := sl.lock(ctx); err != nil {
		return noop, err
	}
	if sl.dead {
		sl.unlock()
		return noop, errGone
	}

	if t != nil && hold {
		t.held[sl] = sl.unlock
		return noop, nil
	}
	return sl.unlock, nil
}

func sortIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func lockErr(kind string, id uuid.UUID, err error) error {
	return fmt.Errorf("lock %s %s: %w", kind, id, err)
}
