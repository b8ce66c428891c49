package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := E("Debit", KindInsufficientFunds, "balance 10.00 < 20.00")

	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Debit: insufficient_funds: balance 10.00 < 20.00", err.Error())
}

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("approve: %w", E("Transfer", KindInvalidTransfer, "self transfer"))

	assert.Equal(t, KindInvalidTransfer, KindOf(err))
	assert.True(t, IsKind(err, KindInvalidTransfer))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("connection refused")))
}

func TestErrorUnwrapsCause(t *testing.T) {
	root := errors.New("root")
	err := &Error{Op: "Credit", Kind: KindNotFound, Err: root}

	assert.ErrorIs(t, err, root)
	assert.ErrorIs(t, err, ErrNotFound)
}
