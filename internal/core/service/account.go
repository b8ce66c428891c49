package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

// DefaultHistoryLimit caps account history when the caller gives no limit.
const DefaultHistoryLimit = 10

// Transferer moves funds atomically between two accounts.
type Transferer interface {
	Transfer(ctx context.Context, from, to uuid.UUID, amount domain.Amount) error
}

// AccountService exposes the account side of the ledger to the boundary.
type AccountService struct {
	accounts  ports.AccountRepository
	transfers Transferer
	log       *zap.Logger
}

func NewAccountService(accounts ports.AccountRepository, transfers Transferer, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{accounts: accounts, transfers: transfers, log: log.Named("accounts")}
}

// OpenAccount creates a zero-balance account.
func (s *AccountService) OpenAccount(ctx context.Context, ownerName string) (domain.Account, error) {
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return domain.Account{}, domain.E("OpenAccount", domain.KindInvalidArgument, "owner_name is required")
	}

	acc, err := s.accounts.Create(ctx, ownerName)
	if err != nil {
		return domain.Account{}, err
	}
	s.log.Info("account opened", zap.Stringer("account_id", acc.ID))
	return acc, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	if err := requireID("GetAccount", "account_id", id); err != nil {
		return domain.Account{}, err
	}
	return s.accounts.Get(ctx, id)
}

// History returns the latest entries of an account, newest first.
func (s *AccountService) History(ctx context.Context, id uuid.UUID, limit int) ([]domain.Entry, error) {
	if err := requireID("History", "account_id", id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	entries, err := s.accounts.History(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

// Deposit credits money entering the system from outside.
func (s *AccountService) Deposit(ctx context.Context, id uuid.UUID, amount domain.Amount) error {
	if err := requireID("Deposit", "account_id", id); err != nil {
		return err
	}
	if err := s.accounts.Credit(ctx, id, amount); err != nil {
		return err
	}
	s.log.Info("deposit applied", zap.Stringer("account_id", id), zap.Stringer("amount", amount))
	return nil
}

// Transfer moves funds between two accounts.
func (s *AccountService) Transfer(ctx context.Context, from, to uuid.UUID, amount domain.Amount) error {
	if err := requireID("Transfer", "from_id", from); err != nil {
		return err
	}
	if err := requireID("Transfer", "to_id", to); err != nil {
		return err
	}
	return s.transfers.Transfer(ctx, from, to, amount)
}
