// Package service translates boundary calls into ledger operations and
// shapes their outcome. It holds no business rules of its own.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

// Result is the uniform response of a loan operation.
type Result struct {
	Message string      `json:"message"`
	Record  domain.Loan `json:"record"`
}

// LoanLedger is the subset of ledger.Ledger the service drives.
type LoanLedger interface {
	RequestLoan(ctx context.Context, borrowerID uuid.UUID, amount domain.Amount) (domain.Loan, error)
	ApproveLoan(ctx context.Context, loanID, lenderID uuid.UUID) (domain.Loan, error)
	RepayLoan(ctx context.Context, loanID uuid.UUID, amount domain.Amount) (domain.Loan, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (domain.Loan, error)
	ListLoans(ctx context.Context, accountID uuid.UUID) ([]domain.Loan, error)
	Repayments(ctx context.Context, loanID uuid.UUID) ([]domain.Repayment, error)
}

// LoanService is the Ledger Service.
type LoanService struct {
	ledger LoanLedger
}

// NewLoanService wraps l.
func NewLoanService(l LoanLedger) *LoanService {
	return &LoanService{ledger: l}
}

// RequestLoan opens a pending loan.
func (s *LoanService) RequestLoan(ctx context.Context, borrowerID uuid.UUID, amount domain.Amount) (Result, error) {
	if err := requireID("RequestLoan", "borrower_id", borrowerID); err != nil {
		return Result{}, err
	}
	loan, err := s.ledger.RequestLoan(ctx, borrowerID, amount)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: "Loan requested", Record: loan}, nil
}

// ApproveLoan funds a pending loan from lenderID.
func (s *LoanService) ApproveLoan(ctx context.Context, loanID, lenderID uuid.UUID) (Result, error) {
	if err := requireID("ApproveLoan", "loan_id", loanID); err != nil {
		return Result{}, err
	}
	if err := requireID("ApproveLoan", "lender_id", lenderID); err != nil {
		return Result{}, err
	}
	loan, err := s.ledger.ApproveLoan(ctx, loanID, lenderID)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: "Loan approved", Record: loan}, nil
}

// RepayLoan pays amount back to the lender.
func (s *LoanService) RepayLoan(ctx context.Context, loanID uuid.UUID, amount domain.Amount) (Result, error) {
	if err := requireID("RepayLoan", "loan_id", loanID); err != nil {
		return Result{}, err
	}
	loan, err := s.ledger.RepayLoan(ctx, loanID, amount)
	if err != nil {
		return Result{}, err
	}

	msg := "Repayment recorded"
	if loan.Status == domain.StatusRepaid {
		msg = "Loan fully repaid"
	}
	return Result{Message: msg, Record: loan}, nil
}

func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (domain.Loan, error) {
	if err := requireID("GetLoan", "loan_id", loanID); err != nil {
		return domain.Loan{}, err
	}
	return s.ledger.GetLoan(ctx, loanID)
}

func (s *LoanService) ListLoans(ctx context.Context, accountID uuid.UUID) ([]domain.Loan, error) {
	if err := requireID("ListLoans", "account_id", accountID); err != nil {
		return nil, err
	}
	loans, err := s.ledger.ListLoans(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []domain.Loan{}
	}
	return loans, nil
}

func (s *LoanService) Repayments(ctx context.Context, loanID uuid.UUID) ([]domain.Repayment, error) {
	if err := requireID("Repayments", "loan_id", loanID); err != nil {
		return nil, err
	}
	reps, err := s.ledger.Repayments(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if reps == nil {
		reps = []domain.Repayment{}
	}
	return reps, nil
}

func requireID(op, name string, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.E(op, domain.KindInvalidArgument, "%s is required", name)
	}
	return nil
}
