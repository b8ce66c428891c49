// Package ledger owns the loan state machine. Every balance change it makes
// goes through the transfer executor, inside the same unit of work that
// persists the loan transition.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/notifications"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

// Transferer moves funds atomically between two accounts.
type Transferer interface {
	Transfer(ctx context.Context, from, to uuid.UUID, amount domain.Amount) error
}

// Deps are the collaborators of a Ledger. Locker, Outbox and Logger are
// optional.
type Deps struct {
	Transactor ports.Transactor
	Accounts   ports.AccountRepository
	Loans      ports.LoanRepository
	Transfers  Transferer
	Locker     ports.Locker
	Outbox     ports.Outbox
	WebhookURL string
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Ledger is the Loan Ledger.
type Ledger struct {
	tx         ports.Transactor
	accounts   ports.AccountRepository
	loans      ports.LoanRepository
	transfers  Transferer
	locker     ports.Locker
	outbox     ports.Outbox
	webhookURL string
	log        *zap.Logger
	now        func() time.Time
}

// New builds a Ledger from d.
func New(d Deps) *Ledger {
	l := &Ledger{
		tx:         d.Transactor,
		accounts:   d.Accounts,
		loans:      d.Loans,
		transfers:  d.Transfers,
		locker:     d.Locker,
		outbox:     d.Outbox,
		webhookURL: d.WebhookURL,
		log:        d.Logger,
		now:        d.Clock,
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	l.log = l.log.Named("ledger")
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// RequestLoan opens a pending loan for borrowerID. Balances are untouched.
func (l *Ledger) RequestLoan(ctx context.Context, borrowerID uuid.UUID, amount domain.Amount) (domain.Loan, error) {
	loan, err := domain.NewLoan(borrowerID, amount, l.now())
	if err != nil {
		return domain.Loan{}, err
	}

	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.accounts.Get(ctx, borrowerID); err != nil {
			return err
		}
		if err := l.loans.Create(ctx, loan); err != nil {
			return err
		}
		return l.publish(ctx, notifications.EventLoanRequested, loan)
	})
	if err != nil {
		return domain.Loan{}, err
	}

	l.log.Info("loan requested",
		zap.Stringer("loan_id", loan.ID),
		zap.Stringer("borrower_id", borrowerID),
		zap.Stringer("principal", loan.Principal),
	)
	return loan, nil
}

// ApproveLoan binds lenderID to a pending loan and moves the principal from
// lender to borrower. If the transfer fails the loan stays pending.
func (l *Ledger) ApproveLoan(ctx context.Context, loanID, lenderID uuid.UUID) (domain.Loan, error) {
	var out domain.Loan

	err := l.withLoanLock(ctx, loanID, func(ctx context.Context) error {
		return l.tx.WithinTx(ctx, func(ctx context.Context) error {
			loan, err := l.loans.GetForUpdate(ctx, loanID)
			if err != nil {
				return err
			}

			next, err := loan.Approve(lenderID, l.now())
			if err != nil {
				return err
			}
			if err := l.transfers.Transfer(ctx, lenderID, loan.BorrowerID, loan.Principal); err != nil {
				return err
			}
			if err := l.loans.Update(ctx, next, loan.Version); err != nil {
				return err
			}
			if err := l.publish(ctx, notifications.EventLoanApproved, next); err != nil {
				return err
			}

			out = next
			return nil
		})
	})
	if err != nil {
		l.log.Warn("loan approval failed",
			zap.Stringer("loan_id", loanID),
			zap.Stringer("lender_id", lenderID),
			zap.Error(err),
		)
		return domain.Loan{}, err
	}

	l.log.Info("loan approved",
		zap.Stringer("loan_id", loanID),
		zap.Stringer("lender_id", lenderID),
		zap.Stringer("principal", out.Principal),
	)
	return out, nil
}

// RepayLoan moves amount from borrower back to lender and records the
// progress. Repaying the exact remaining amount closes the loan. Amounts
// above the remaining balance are rejected, never clamped.
func (l *Ledger) RepayLoan(ctx context.Context, loanID uuid.UUID, amount domain.Amount) (domain.Loan, error) {
	var out domain.Loan

	err := l.withLoanLock(ctx, loanID, func(ctx context.Context) error {
		return l.tx.WithinTx(ctx, func(ctx context.Context) error {
			loan, err := l.loans.GetForUpdate(ctx, loanID)
			if err != nil {
				return err
			}

			next, repayment, err := loan.Repay(amount, l.now())
			if err != nil {
				return err
			}
			if err := l.transfers.Transfer(ctx, loan.BorrowerID, loan.Lender(), amount); err != nil {
				return err
			}
			if err := l.loans.Update(ctx, next, loan.Version); err != nil {
				return err
			}
			if err := l.loans.AddRepayment(ctx, repayment); err != nil {
				return err
			}

			event := notifications.EventLoanRepayment
			if next.Status == domain.StatusRepaid {
				event = notifications.EventLoanRepaid
			}
			if err := l.publish(ctx, event, next); err != nil {
				return err
			}

			out = next
			return nil
		})
	})
	if err != nil {
		l.log.Warn("loan repayment failed",
			zap.Stringer("loan_id", loanID),
			zap.Stringer("amount", amount),
			zap.Error(err),
		)
		return domain.Loan{}, err
	}

	l.log.Info("loan repayment applied",
		zap.Stringer("loan_id", loanID),
		zap.Stringer("amount", amount),
		zap.Stringer("remaining", out.Remaining),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

// GetLoan returns the current loan record.
func (l *Ledger) GetLoan(ctx context.Context, loanID uuid.UUID) (domain.Loan, error) {
	return l.loans.Get(ctx, loanID)
}

// ListLoans returns loans where accountID is borrower or lender.
func (l *Ledger) ListLoans(ctx context.Context, accountID uuid.UUID) ([]domain.Loan, error) {
	if _, err := l.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return l.loans.ListByAccount(ctx, accountID)
}

// Repayments returns the repayment trail of a loan.
func (l *Ledger) Repayments(ctx context.Context, loanID uuid.UUID) ([]domain.Repayment, error) {
	return l.loans.Repayments(ctx, loanID)
}

func (l *Ledger) withLoanLock(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context) error) error {
	if l.locker == nil {
		return fn(ctx)
	}
	return l.locker.WithLock(ctx, "lock:loan:"+loanID.String(), fn)
}

// publish enqueues a lifecycle event inside the current unit, so the event
// exists exactly when the transition does.
func (l *Ledger) publish(ctx context.Context, event string, loan domain.Loan) error {
	if l.outbox == nil || l.webhookURL == "" {
		return nil
	}
	body, err := notifications.NewLoanEvent(event, loan, l.now())
	if err != nil {
		return err
	}
	return l.outbox.Enqueue(ctx, l.webhookURL, body)
}
