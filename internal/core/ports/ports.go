// Package ports declares the storage and coordination contracts the ledger
// core depends on. Adapters under internal/adapter implement them.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

// Transactor runs fn as one atomic unit. Repositories called with the
// context handed to fn take part in the unit. If fn returns an error every
// mutation made inside the unit is undone. A nested WithinTx behaves as a
// savepoint: its failure undoes only its own mutations, while its success
// still commits or aborts with the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountRepository is the Account Store: the only component allowed to
// change a balance.
type AccountRepository interface {
	Create(ctx context.Context, ownerName string) (domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetBalance(ctx context.Context, id uuid.UUID) (domain.Amount, error)

	// Debit fails with InsufficientFunds rather than letting the balance go
	// below zero.
	Debit(ctx context.Context, id uuid.UUID, amount domain.Amount) error
	Credit(ctx context.Context, id uuid.UUID, amount domain.Amount) error

	// LockForUpdate locks the existing accounts among ids in ascending id
	// order until the surrounding unit ends. Unknown ids are skipped.
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) error

	History(ctx context.Context, id uuid.UUID, limit int) ([]domain.Entry, error)
}

// LoanRepository owns loan records.
type LoanRepository interface {
	Create(ctx context.Context, loan domain.Loan) error
	Get(ctx context.Context, id uuid.UUID) (domain.Loan, error)

	// GetForUpdate loads the loan and locks it until the surrounding unit
	// ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Loan, error)

	// Update stores loan only if the stored version still equals
	// expectedVersion; otherwise it fails with InvalidState.
	Update(ctx context.Context, loan domain.Loan, expectedVersion int64) error

	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Loan, error)
	AddRepayment(ctx context.Context, r domain.Repayment) error
	Repayments(ctx context.Context, loanID uuid.UUID) ([]domain.Repayment, error)
}

// Locker provides mutual exclusion keyed by an arbitrary string.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Job is a queued webhook delivery.
type Job struct {
	ID        uuid.UUID
	URL       string
	Payload   []byte
	Attempts  int
	NextRunAt time.Time
	CreatedAt time.Time
}

// Outbox enqueues webhook jobs. Enqueue inside a unit is only visible once
// the unit commits.
type Outbox interface {
	Enqueue(ctx context.Context, url string, payload []byte) error
}

// JobQueue is the consumer side of the outbox.
type JobQueue interface {
	// Claim returns the oldest due job, or ok=false when none is due.
	Claim(ctx context.Context) (job Job, ok bool, err error)
	Complete(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID, nextRun time.Time) error
	Fail(ctx context.Context, id uuid.UUID) error
}

// CachedResponse is a stored HTTP response keyed by Idempotency-Key.
type CachedResponse struct {
	Status int
	Body   []byte
}

// IdempotencyStore caches responses of non-idempotent requests.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (CachedResponse, bool, error)
	// Save keeps the first response stored for key.
	Save(ctx context.Context, key string, resp CachedResponse) error
}
