package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var _ ports.LoanRepository = (*LoanRepository)(nil)

const loanColumns = `id, borrower_id, lender_id, principal, remaining, status, version, created_at, updated_at`

type LoanRepository struct {
	db *pgxpool.Pool
}

func NewLoanRepository(db *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, loan domain.Loan) error {
	query := `INSERT INTO loans (` + loanColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		loan.ID, loan.BorrowerID, nullUUID(loan.LenderID),
		int64(loan.Principal), int64(loan.Remaining), string(loan.Status),
		loan.Version, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (r *LoanRepository) Get(ctx context.Context, id uuid.UUID) (domain.Loan, error) {
	return r.get(ctx, id, `SELECT `+loanColumns+` FROM loans WHERE id = $1`)
}

// GetForUpdate row-locks the loan until the surrounding transaction ends.
func (r *LoanRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Loan, error) {
	return r.get(ctx, id, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`)
}

func (r *LoanRepository) get(ctx context.Context, id uuid.UUID, query string) (domain.Loan, error) {
	loan, err := scanLoan(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Loan{}, domain.E("GetLoan", domain.KindNotFound, "loan %s not found", id)
	}
	if err != nil {
		return domain.Loan{}, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// Update writes loan only while the stored version is expectedVersion.
func (r *LoanRepository) Update(ctx context.Context, loan domain.Loan, expectedVersion int64) error {
	query := `
		UPDATE loans
		SET lender_id = $2, remaining = $3, status = $4, version = $5, updated_at = $6
		WHERE id = $1 AND version = $7
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query,
		loan.ID, nullUUID(loan.LenderID), int64(loan.Remaining), string(loan.Status),
		loan.Version, loan.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, loan.ID); err != nil {
			return err
		}
		return domain.E("UpdateLoan", domain.KindInvalidState, "loan %s changed concurrently (expected version %d)", loan.ID, expectedVersion)
	}
	return nil
}

// ListByAccount returns loans where accountID is borrower or lender,
// oldest first.
func (r *LoanRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = $1 OR lender_id = $1 ORDER BY created_at, id`
	rows, err := conn(ctx, r.db).Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (r *LoanRepository) AddRepayment(ctx context.Context, rep domain.Repayment) error {
	query := `
		INSERT INTO loan_repayments (id, loan_id, amount, remaining_after, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		rep.ID, rep.LoanID, int64(rep.Amount), int64(rep.RemainingAfter), rep.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record repayment: %w", err)
	}
	return nil
}

// Repayments returns the loan's repayments in the order they were made.
func (r *LoanRepository) Repayments(ctx context.Context, loanID uuid.UUID) ([]domain.Repayment, error) {
	if _, err := r.Get(ctx, loanID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, loan_id, amount, remaining_after, created_at
		FROM loan_repayments
		WHERE loan_id = $1
		ORDER BY seq
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load repayments: %w", err)
	}
	defer rows.Close()

	out := []domain.Repayment{}
	for rows.Next() {
		var (
			rep               domain.Repayment
			amount, remaining int64
		)
		if err := rows.Scan(&rep.ID, &rep.LoanID, &amount, &remaining, &rep.CreatedAt); err != nil {
			return nil, err
		}
		rep.Amount = domain.Amount(amount)
		rep.RemainingAfter = domain.Amount(remaining)
		out = append(out, rep)
	}
	return out, rows.Err()
}

func scanLoan(row pgx.Row) (domain.Loan, error) {
	var (
		loan                 domain.Loan
		lender               uuid.NullUUID
		principal, remaining int64
		status               string
	)
	err := row.Scan(&loan.ID, &loan.BorrowerID, &lender, &principal, &remaining,
		&status, &loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return domain.Loan{}, err
	}

	loan.Status, err = domain.ParseLoanStatus(status)
	if err != nil {
		return domain.Loan{}, err
	}
	if lender.Valid {
		id := lender.UUID
		loan.LenderID = &id
	}
	loan.Principal = domain.Amount(principal)
	loan.Remaining = domain.Amount(remaining)
	return loan, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
