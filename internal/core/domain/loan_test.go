package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestNewLoan(t *testing.T) {
	borrower := uuid.New()

	loan, err := NewLoan(borrower, 10000, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, loan.Status)
	assert.Equal(t, Amount(10000), loan.Principal)
	assert.Equal(t, Amount(10000), loan.Remaining)
	assert.Nil(t, loan.LenderID)
	assert.Equal(t, int64(1), loan.Version)

	_, err = NewLoan(borrower, 0, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestApproveOnlyFromPending(t *testing.T) {
	loan, err := NewLoan(uuid.New(), 10000, now)
	require.NoError(t, err)
	lender := uuid.New()

	approved, err := loan.Approve(lender, now)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, lender, approved.Lender())
	assert.Equal(t, int64(2), approved.Version)

	// the receiver is untouched
	assert.Equal(t, StatusPending, loan.Status)
	assert.Nil(t, loan.LenderID)

	_, err = approved.Approve(uuid.New(), now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRepay(t *testing.T) {
	loan, err := NewLoan(uuid.New(), 10000, now)
	require.NoError(t, err)

	_, _, err = loan.Repay(100, now)
	assert.ErrorIs(t, err, ErrInvalidState, "pending loans cannot be repaid")

	approved, err := loan.Approve(uuid.New(), now)
	require.NoError(t, err)

	_, _, err = approved.Repay(10001, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, _, err = approved.Repay(0, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	partial, rep, err := approved.Repay(4000, now)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, partial.Status)
	assert.Equal(t, Amount(6000), partial.Remaining)
	assert.Equal(t, Amount(6000), rep.RemainingAfter)
	assert.Equal(t, approved.ID, rep.LoanID)

	closed, _, err := partial.Repay(6000, now)
	require.NoError(t, err)
	assert.Equal(t, StatusRepaid, closed.Status)
	assert.Equal(t, Amount(0), closed.Remaining)
	assert.True(t, closed.Status.Terminal())

	_, _, err = closed.Repay(1, now)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = closed.Approve(uuid.New(), now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestParseLoanStatus(t *testing.T) {
	s, err := ParseLoanStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)

	_, err = ParseLoanStatus("cancelled")
	assert.Error(t, err)
}
