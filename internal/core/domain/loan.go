package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LoanStatus is the closed set of states a loan can be in.
type LoanStatus string

const (
	StatusPending  LoanStatus = "pending"
	StatusApproved LoanStatus = "approved"
	StatusRepaid   LoanStatus = "repaid"
)

// ParseLoanStatus maps a stored string back to a LoanStatus.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch LoanStatus(s) {
	case StatusPending, StatusApproved, StatusRepaid:
		return LoanStatus(s), nil
	}
	return "", fmt.Errorf("unknown loan status %q", s)
}

// Terminal reports whether no further transition is possible.
func (s LoanStatus) Terminal() bool {
	return s == StatusRepaid
}

// Loan is the ledger record tracking a borrowed amount's lifecycle.
//
// Loans are values: transitions return an updated copy and never mutate the
// receiver, so a failed operation can simply drop the result.
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	BorrowerID uuid.UUID  `json:"borrower_id"`
	LenderID   *uuid.UUID `json:"lender_id,omitempty"`
	Principal  Amount     `json:"principal"`
	Remaining  Amount     `json:"remaining"`
	Status     LoanStatus `json:"status"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Repayment is the audit record of one successful repayment.
type Repayment struct {
	ID             uuid.UUID `json:"id"`
	LoanID         uuid.UUID `json:"loan_id"`
	Amount         Amount    `json:"amount"`
	RemainingAfter Amount    `json:"remaining_after"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewLoan creates a pending loan for borrowerID.
func NewLoan(borrowerID uuid.UUID, amount Amount, now time.Time) (Loan, error) {
	if err := RequirePositive("RequestLoan", amount); err != nil {
		return Loan{}, err
	}
	now = now.UTC()
	return Loan{
		ID:         uuid.New(),
		BorrowerID: borrowerID,
		Principal:  amount,
		Remaining:  amount,
		Status:     StatusPending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Approve binds lenderID and moves a pending loan to approved.
func (l Loan) Approve(lenderID uuid.UUID, now time.Time) (Loan, error) {
	if l.Status != StatusPending {
		return Loan{}, E("ApproveLoan", KindInvalidState, "loan %s is %s, want %s", l.ID, l.Status, StatusPending)
	}
	if l.LenderID != nil {
		return Loan{}, E("ApproveLoan", KindInvalidState, "loan %s already has a lender", l.ID)
	}

	next := l
	lender := lenderID
	next.LenderID = &lender
	next.Status = StatusApproved
	next.Version++
	next.UpdatedAt = now.UTC()
	return next, nil
}

// Repay applies amount against the remaining balance and closes the loan
// when nothing is left. The returned Repayment describes the step.
func (l Loan) Repay(amount Amount, now time.Time) (Loan, Repayment, error) {
	if l.Status != StatusApproved {
		return Loan{}, Repayment{}, E("RepayLoan", KindInvalidState, "loan %s is %s, want %s", l.ID, l.Status, StatusApproved)
	}
	if err := RequirePositive("RepayLoan", amount); err != nil {
		return Loan{}, Repayment{}, err
	}
	if amount > l.Remaining {
		return Loan{}, Repayment{}, E("RepayLoan", KindInvalidAmount, "repayment %s exceeds remaining %s", amount, l.Remaining)
	}

	now = now.UTC()
	next := l
	next.Remaining -= amount
	if next.Remaining == 0 {
		next.Status = StatusRepaid
	}
	next.Version++
	next.UpdatedAt = now

	return next, Repayment{
		ID:             uuid.New(),
		LoanID:         l.ID,
		Amount:         amount,
		RemainingAfter: next.Remaining,
		CreatedAt:      now,
	}, nil
}

// Lender returns the bound lender, or uuid.Nil for a pending loan.
func (l Loan) Lender() uuid.UUID {
	if l.LenderID == nil {
		return uuid.Nil
	}
	return *l.LenderID
}
