package storage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var _ ports.AccountRepository = (*AccountRepository)(nil)

// numeric_value_out_of_range
const sqlstateOutOfRange = "22003"

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create opens a zero-balance account.
func (r *AccountRepository) Create(ctx context.Context, ownerName string) (domain.Account, error) {
	query := `
		INSERT INTO accounts (id, owner_name, balance)
		VALUES ($1, $2, 0)
		RETURNING id, owner_name, balance, created_at
	`
	acc, err := scanAccount(conn(ctx, r.db).QueryRow(ctx, query, uuid.New(), ownerName))
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	query := `SELECT id, owner_name, balance, created_at FROM accounts WHERE id = $1`
	acc, err := scanAccount(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.E("GetAccount", domain.KindNotFound, "account %s not found", id)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) GetBalance(ctx context.Context, id uuid.UUID) (domain.Amount, error) {
	acc, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Debit removes amount from the account. The balance guard and the entry
// insert run as one statement, so a refused debit leaves no trace.
func (r *AccountRepository) Debit(ctx context.Context, id uuid.UUID, amount domain.Amount) error {
	if err := domain.RequirePositive("Debit", amount); err != nil {
		return err
	}
	query := `
		WITH upd AS (
			UPDATE accounts SET balance = balance - $1
			WHERE id = $2 AND balance >= $1
			RETURNING id
		)
		INSERT INTO entries (id, account_id, direction, amount)
		SELECT $3, id, 'DEBIT', $1 FROM upd
		RETURNING seq
	`
	var seq int64
	err := conn(ctx, r.db).QueryRow(ctx, query, int64(amount), id, uuid.New()).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		balance, gerr := r.GetBalance(ctx, id)
		if gerr != nil {
			return gerr
		}
		return domain.E("Debit", domain.KindInsufficientFunds, "account %s has %s, needs %s", id, balance, amount)
	}
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	return nil
}

func (r *AccountRepository) Credit(ctx context.Context, id uuid.UUID, amount domain.Amount) error {
	if err := domain.RequirePositive("Credit", amount); err != nil {
		return err
	}
	query := `
		WITH upd AS (
			UPDATE accounts SET balance = balance + $1
			WHERE id = $2 AND balance <= $4 - $1
			RETURNING id
		)
		INSERT INTO entries (id, account_id, direction, amount)
		SELECT $3, id, 'CREDIT', $1 FROM upd
		RETURNING seq
	`
	var seq int64
	err := conn(ctx, r.db).QueryRow(ctx, query, int64(amount), id, uuid.New(), int64(domain.MaxBalance)).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetBalance(ctx, id); gerr != nil {
			return gerr
		}
		return errBalanceLimit(id)
	}
	if err != nil {
		return creditFailure(id, err)
	}
	return nil
}

// LockForUpdate takes row locks in id order. Outside a transaction the
// locks would be released immediately, so it does nothing.
func (r *AccountRepository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) error {
	tx, ok := txFrom(ctx)
	if !ok || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	query := `SELECT id FROM accounts WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	if _, err := tx.Exec(ctx, query, keys); err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}
	return nil
}

// History returns the latest entries first. limit <= 0 means no limit.
func (r *AccountRepository) History(ctx context.Context, id uuid.UUID, limit int) ([]domain.Entry, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}

	query := `
		SELECT id, account_id, direction, amount, created_at
		FROM entries
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		var (
			e         domain.Entry
			direction string
			amount    int64
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &direction, &amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Direction = domain.Direction(direction)
		e.Amount = domain.Amount(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func errBalanceLimit(id uuid.UUID) error {
	return domain.E("Credit", domain.KindInvalidAmount, "account %s would exceed the maximum balance", id)
}

// creditFailure maps a bigint overflow to the balance limit error so it is
// reported like any other refused credit.
func creditFailure(id uuid.UUID, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateOutOfRange {
		return errBalanceLimit(id)
	}
	return fmt.Errorf("failed to credit account: %w", err)
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		acc     domain.Account
		balance int64
	)
	if err := row.Scan(&acc.ID, &acc.OwnerName, &balance, &acc.CreatedAt); err != nil {
		return domain.Account{}, err
	}
	acc.Balance = domain.Amount(balance)
	return acc, nil
}
