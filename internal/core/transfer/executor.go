// Package transfer moves funds between two accounts as a single atomic unit.
package transfer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

// Executor is the Transfer Executor. It is the only caller of the Account
// Store's debit and credit on behalf of loans.
type Executor struct {
	tx       ports.Transactor
	accounts ports.AccountRepository
	log      *zap.Logger
}

// NewExecutor wires an Executor. A nil logger discards output.
func NewExecutor(tx ports.Transactor, accounts ports.AccountRepository, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{tx: tx, accounts: accounts, log: log.Named("transfer")}
}

// Transfer debits from and credits to by amount. Either both sides apply or
// neither does. Inside an open unit of work it runs as a savepoint, so a
// later failure in the caller also undoes the transfer.
func (e *Executor) Transfer(ctx context.Context, from, to uuid.UUID, amount domain.Amount) error {
	if from == to {
		return domain.E("Transfer", domain.KindInvalidTransfer, "source and destination are both %s", from)
	}
	if err := domain.RequirePositive("Transfer", amount); err != nil {
		return err
	}

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.accounts.LockForUpdate(ctx, from, to); err != nil {
			return err
		}
		if err := e.accounts.Debit(ctx, from, amount); err != nil {
			return err
		}
		// A failed credit aborts the unit, which restores the debit.
		return e.accounts.Credit(ctx, to, amount)
	})
	if err != nil {
		e.log.Debug("transfer rejected",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Stringer("amount", amount),
			zap.Error(err),
		)
		return err
	}

	e.log.Debug("transfer applied",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Stringer("amount", amount),
	)
	return nil
}
