package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is a holder of a non-negative balance.
type Account struct {
	ID        uuid.UUID `json:"id"`
	OwnerName string    `json:"owner_name"`
	Balance   Amount    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Direction of a ledger entry relative to its account.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// Entry is one side of a balance movement, kept for account history.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Direction Direction `json:"direction"`
	Amount    Amount    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry stamps a fresh entry for accountID.
func NewEntry(accountID uuid.UUID, dir Direction, amount Amount, now time.Time) Entry {
	return Entry{
		ID:        uuid.New(),
		AccountID: accountID,
		Direction: dir,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}
}
