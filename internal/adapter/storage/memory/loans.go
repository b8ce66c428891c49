package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

type loanState struct {
	loan       domain.Loan
	repayments []domain.Repayment
}

// Loans is the in-memory loan repository.
type Loans struct {
	s *Store
}

func (r *Loans) acquire(ctx context.Context, op string, id uuid.UUID, hold bool) (*slot[loanState], func(), error) {
	r.s.mu.RLock()
	sl := r.s.loans[id]
	r.s.mu.RUnlock()

	if sl == nil {
		return nil, nil, domain.E(op, domain.KindNotFound, "loan %s not found", id)
	}
	release, err := acquire(ctx, sl, hold)
	if errors.Is(err, errGone) {
		return nil, nil, domain.E(op, domain.KindNotFound, "loan %s not found", id)
	}
	if err != nil {
		return nil, nil, lockErr("loan", id, err)
	}
	return sl, release, nil
}

// Create stores a new loan.
func (r *Loans) Create(ctx context.Context, loan domain.Loan) error {
	sl := newSlot(loanState{loan: loan})
	return publish(ctx, sl,
		func() error {
			r.s.mu.Lock()
			defer r.s.mu.Unlock()
			if _, exists := r.s.loans[loan.ID]; exists {
				return fmt.Errorf("loan %s already exists", loan.ID)
			}
			r.s.loans[loan.ID] = sl
			return nil
		},
		func() {
			r.s.mu.Lock()
			delete(r.s.loans, loan.ID)
			r.s.mu.Unlock()
		})
}

// Get returns a snapshot of the loan.
func (r *Loans) Get(ctx context.Context, id uuid.UUID) (domain.Loan, error) {
	sl, release, err := r.acquire(ctx, "GetLoan", id, false)
	if err != nil {
		return domain.Loan{}, err
	}
	defer release()
	return sl.val.loan, nil
}

// GetForUpdate returns the loan and keeps it locked until the unit ends.
func (r *Loans) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Loan, error) {
	sl, release, err := r.acquire(ctx, "GetLoan", id, true)
	if err != nil {
		return domain.Loan{}, err
	}
	defer release()
	return sl.val.loan, nil
}

// Update replaces the loan if its stored version is expectedVersion.
func (r *Loans) Update(ctx context.Context, loan domain.Loan, expectedVersion int64) error {
	sl, release, err := r.acquire(ctx, "UpdateLoan", loan.ID, true)
	if err != nil {
		return err
	}
	defer release()

	st := &sl.val
	if st.loan.Version != expectedVersion {
		return domain.E("UpdateLoan", domain.KindInvalidState, "loan %s changed concurrently (version %d, expected %d)", loan.ID, st.loan.Version, expectedVersion)
	}

	prev := st.loan
	st.loan = loan
	txFrom(ctx).record(func() { st.loan = prev })
	return nil
}

// ListByAccount returns the loans where accountID is borrower or lender,
// oldest first.
func (r *Loans) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Loan, error) {
	r.s.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.s.loans))
	for id := range r.s.loans {
		ids = append(ids, id)
	}
	r.s.mu.RUnlock()

	var out []domain.Loan
	for _, id := range ids {
		loan, err := r.Get(ctx, id)
		if domain.IsKind(err, domain.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if loan.BorrowerID == accountID || loan.Lender() == accountID {
			out = append(out, loan)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AddRepayment appends a repayment to the loan's audit trail.
func (r *Loans) AddRepayment(ctx context.Context, rep domain.Repayment) error {
	sl, release, err := r.acquire(ctx, "AddRepayment", rep.LoanID, true)
	if err != nil {
		return err
	}
	defer release()

	st := &sl.val
	n := len(st.repayments)
	st.repayments = append(st.repayments, rep)
	txFrom(ctx).record(func() { st.repayments = st.repayments[:n] })
	return nil
}

// Repayments returns the loan's repayments in the order they were made.
func (r *Loans) Repayments(ctx context.Context, loanID uuid.UUID) ([]domain.Repayment, error) {
	sl, release, err := r.acquire(ctx, "Repayments", loanID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]domain.Repayment, len(sl.val.repayments))
	copy(out, sl.val.repayments)
	return out, nil
}
