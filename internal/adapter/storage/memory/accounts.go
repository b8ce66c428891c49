package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

type accountState struct {
	account domain.Account
	entries []domain.Entry
}

// Accounts is the in-memory Account Store.
type Accounts struct {
	s *Store
}

func (r *Accounts) slot(id uuid.UUID) *slot[accountState] {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.accounts[id]
}

func (r *Accounts) acquire(ctx context.Context, op string, id uuid.UUID, hold bool) (*slot[accountState], func(), error) {
	sl := r.slot(id)
	if sl == nil {
		return nil, nil, domain.E(op, domain.KindNotFound, "account %s not found", id)
	}
	release, err := acquire(ctx, sl, hold)
	if errors.Is(err, errGone) {
		return nil, nil, domain.E(op, domain.KindNotFound, "account %s not found", id)
	}
	if err != nil {
		return nil, nil, lockErr("account", id, err)
	}
	return sl, release, nil
}

// Create opens a zero-balance account.
func (r *Accounts) Create(ctx context.Context, ownerName string) (domain.Account, error) {
	acc := domain.Account{
		ID:        uuid.New(),
		OwnerName: ownerName,
		CreatedAt: r.s.now().UTC(),
	}

	sl := newSlot(accountState{account: acc})
	_ = publish(ctx, sl,
		func() error {
			r.s.mu.Lock()
			r.s.accounts[acc.ID] = sl
			r.s.mu.Unlock()
			return nil
		},
		func() {
			r.s.mu.Lock()
			delete(r.s.accounts, acc.ID)
			r.s.mu.Unlock()
		})
	return acc, nil
}

// Get returns a snapshot of the account.
func (r *Accounts) Get(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	sl, release, err := r.acquire(ctx, "GetAccount", id, false)
	if err != nil {
		return domain.Account{}, err
	}
	defer release()
	return sl.val.account, nil
}

// GetBalance returns the current balance.
func (r *Accounts) GetBalance(ctx context.Context, id uuid.UUID) (domain.Amount, error) {
	acc, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Debit removes amount from the account, refusing to overdraw.
func (r *Accounts) Debit(ctx context.Context, id uuid.UUID, amount domain.Amount) error {
	if err := domain.RequirePositive("Debit", amount); err != nil {
		return err
	}
	sl, release, err := r.acquire(ctx, "Debit", id, true)
	if err != nil {
		return err
	}
	defer release()

	st := &sl.val
	if st.account.Balance < amount {
		return domain.E("Debit", domain.KindInsufficientFunds, "account %s has %s, needs %s", id, st.account.Balance, amount)
	}
	r.apply(ctx, st, domain.Debit, amount)
	return nil
}

// Credit adds amount to the account.
func (r *Accounts) Credit(ctx context.Context, id uuid.UUID, amount domain.Amount) error {
	if err := domain.RequirePositive("Credit", amount); err != nil {
		return err
	}
	sl, release, err := r.acquire(ctx, "Credit", id, true)
	if err != nil {
		return err
	}
	defer release()

	st := &sl.val
	if domain.ExceedsBalanceLimit(st.account.Balance, amount) {
		return domain.E("Credit", domain.KindInvalidAmount, "account %s would exceed the maximum balance", id)
	}
	r.apply(ctx, st, domain.Credit, amount)
	return nil
}

// apply mutates st, which the caller holds locked.
func (r *Accounts) apply(ctx context.Context, st *accountState, dir domain.Direction, amount domain.Amount) {
	delta := amount
	if dir == domain.Debit {
		delta = -amount
	}

	n := len(st.entries)
	st.account.Balance += delta
	st.entries = append(st.entries, domain.NewEntry(st.account.ID, dir, amount, r.s.now()))

	txFrom(ctx).record(func() {
		st.account.Balance -= delta
		st.entries = st.entries[:n]
	})
}

// LockForUpdate implements ports.AccountRepository.
func (r *Accounts) LockForUpdate(ctx context.Context, ids ...uuid.UUID) error {
	if txFrom(ctx) == nil {
		return nil
	}
	for _, id := range sortIDs(ids) {
		sl := r.slot(id)
		if sl == nil {
			continue
		}
		_, err := acquire(ctx, sl, true)
		if errors.Is(err, errGone) {
			continue
		}
		if err != nil {
			return lockErr("account", id, err)
		}
	}
	return nil
}

// History returns up to limit entries, newest first.
func (r *Accounts) History(ctx context.Context, id uuid.UUID, limit int) ([]domain.Entry, error) {
	sl, release, err := r.acquire(ctx, "History", id, false)
	if err != nil {
		return nil, err
	}
	defer release()

	entries := sl.val.entries
	out := make([]domain.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, entries[i])
	}
	return out, nil
}
