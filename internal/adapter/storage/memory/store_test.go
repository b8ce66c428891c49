package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var errBoom = errors.New("boom")

func TestAccountDebitCredit(t *testing.T) {
	ctx := context.Background()
	accounts := New().Accounts()

	acc, err := accounts.Create(ctx, "Amina")
	require.NoError(t, err)

	require.NoError(t, accounts.Credit(ctx, acc.ID, 500))
	require.NoError(t, accounts.Debit(ctx, acc.ID, 200))

	err = accounts.Debit(ctx, acc.ID, 301)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.ErrorIs(t, accounts.Debit(ctx, acc.ID, 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, accounts.Credit(ctx, uuid.New(), 1), domain.ErrNotFound)

	bal, err := accounts.GetBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(300), bal)

	history, err := accounts.History(ctx, acc.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.Debit, history[0].Direction, "newest first")
}

func TestCreditRefusesToPassMaxBalance(t *testing.T) {
	ctx := context.Background()
	accounts := New().Accounts()

	acc, err := accounts.Create(ctx, "Neema")
	require.NoError(t, err)

	big, err := domain.ParseAmount("46116860184273879.03")
	require.NoError(t, err)
	require.NoError(t, accounts.Credit(ctx, acc.ID, big))
	assert.ErrorIs(t, accounts.Credit(ctx, acc.ID, big), domain.ErrInvalidAmount)

	require.NoError(t, accounts.Credit(ctx, acc.ID, domain.MaxBalance-big))
	assert.ErrorIs(t, accounts.Credit(ctx, acc.ID, 2), domain.ErrInvalidAmount)

	bal, err := accounts.GetBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxBalance, bal)

	history, err := accounts.History(ctx, acc.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2, "refused credits leave no entry")
}

func TestCreateInsideUnitIsHiddenUntilCommit(t *testing.T) {
	s := New()
	accounts := s.Accounts()

	created := make(chan uuid.UUID)
	commit := make(chan struct{})
	unit := make(chan error, 1)
	go func() {
		unit <- s.WithinTx(context.Background(), func(ctx context.Context) error {
			acc, err := accounts.Create(ctx, "Baraka")
			if err != nil {
				return err
			}
			if err := accounts.Credit(ctx, acc.ID, 300); err != nil {
				return err
			}
			created <- acc.ID
			<-commit
			return nil
		})
	}()
	id := <-created

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := accounts.Get(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(commit)
	require.NoError(t, <-unit)

	acc, err := accounts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(300), acc.Balance)
}

func TestWaiterOnRolledBackCreateSeesNotFound(t *testing.T) {
	s := New()
	loans := s.Loans()
	loan, err := domain.NewLoan(uuid.New(), 100, time.Now())
	require.NoError(t, err)

	created := make(chan struct{})
	abort := make(chan struct{})
	unit := make(chan error, 1)
	go func() {
		unit <- s.WithinTx(context.Background(), func(ctx context.Context) error {
			if err := loans.Create(ctx, loan); err != nil {
				return err
			}
			close(created)
			<-abort
			return errBoom
		})
	}()
	<-created

	got := make(chan error, 1)
	go func() {
		_, err := loans.Get(context.Background(), loan.ID)
		got <- err
	}()

	close(abort)
	require.ErrorIs(t, <-unit, errBoom)
	assert.ErrorIs(t, <-got, domain.ErrNotFound)
}

func TestWithinTxRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	s := New()
	accounts, loans := s.Accounts(), s.Loans()

	acc, err := accounts.Create(ctx, "Juma")
	require.NoError(t, err)
	loan, err := domain.NewLoan(acc.ID, 100, time.Now())
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, accounts.Credit(ctx, acc.ID, 1000))
		require.NoError(t, loans.Create(ctx, loan))
		require.NoError(t, s.Enqueue(ctx, "http://hook", []byte(`{}`)))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	bal, err := accounts.GetBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), bal)

	_, err = loans.Get(ctx, loan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, ok, err := s.Claim(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "rolled back jobs are never queued")
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()
	accounts := s.Accounts()
	acc, err := accounts.Create(ctx, "Neema")
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context) error {
			_ = accounts.Credit(ctx, acc.ID, 10)
			panic("boom")
		})
	})

	bal, err := accounts.GetBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), bal)

	// the account lock was released by the rollback
	require.NoError(t, accounts.Credit(ctx, acc.ID, 5))
}

func TestLoanUpdateIsConditional(t *testing.T) {
	ctx := context.Background()
	loans := New().Loans()

	loan, err := domain.NewLoan(uuid.New(), 100, time.Now())
	require.NoError(t, err)
	require.NoError(t, loans.Create(ctx, loan))

	approved, err := loan.Approve(uuid.New(), time.Now())
	require.NoError(t, err)
	require.NoError(t, loans.Update(ctx, approved, loan.Version))

	// a second writer that still holds the old version loses
	err = loans.Update(ctx, approved, loan.Version)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := loans.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
}

func TestLoanListAndRepayments(t *testing.T) {
	ctx := context.Background()
	loans := New().Loans()
	borrower, lender, other := uuid.New(), uuid.New(), uuid.New()

	first, _ := domain.NewLoan(borrower, 100, time.Now())
	second, _ := domain.NewLoan(other, 100, time.Now().Add(time.Second))
	require.NoError(t, loans.Create(ctx, first))
	require.NoError(t, loans.Create(ctx, second))

	approved, err := second.Approve(borrower, time.Now())
	require.NoError(t, err)
	require.NoError(t, loans.Update(ctx, approved, second.Version))

	list, err := loans.ListByAccount(ctx, borrower)
	require.NoError(t, err)
	require.Len(t, list, 2, "borrower of first, lender of second")
	assert.Equal(t, first.ID, list[0].ID)

	list, err = loans.ListByAccount(ctx, lender)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, rep, err := approved.Repay(40, time.Now())
	require.NoError(t, err)
	require.NoError(t, loans.AddRepayment(ctx, rep))

	reps, err := loans.Repayments(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, domain.Amount(60), reps[0].RemainingAfter)

	_, err = loans.Repayments(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetForUpdateHonoursContext(t *testing.T) {
	s := New()
	loans := s.Loans()
	loan, _ := domain.NewLoan(uuid.New(), 100, time.Now())
	require.NoError(t, loans.Create(context.Background(), loan))

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context) error {
			_, err := loans.GetForUpdate(ctx, loan.ID)
			assert.NoError(t, err)
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := loans.Get(ctx, loan.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJobQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Enqueue(ctx, "http://hook", []byte(`{"event":"loan.approved"}`)))

	job, ok, err := s.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://hook", job.URL)

	_, ok, _ = s.Claim(ctx)
	assert.False(t, ok, "a claimed job is not handed out twice")

	require.NoError(t, s.Retry(ctx, job.ID, time.Now().Add(-time.Second)))
	job, ok, _ = s.Claim(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, job.Attempts)

	require.NoError(t, s.Complete(ctx, job.ID))
	assert.Equal(t, map[string]int{"COMPLETED": 1}, s.JobCounts())
}

func TestIdempotencyKeepsFirstResponse(t *testing.T) {
	ctx := context.Background()
	var store ports.IdempotencyStore = New()

	require.NoError(t, store.Save(ctx, "k1", ports.CachedResponse{Status: 200, Body: []byte("first")}))
	require.NoError(t, store.Save(ctx, "k1", ports.CachedResponse{Status: 500, Body: []byte("second")}))

	resp, ok, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "first", string(resp.Body))

	_, ok, _ = store.Lookup(ctx, "missing")
	assert.False(t, ok)
}
