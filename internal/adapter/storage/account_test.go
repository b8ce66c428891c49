package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
)

func TestCreditFailureMapsOverflow(t *testing.T) {
	id := uuid.New()

	overflow := fmt.Errorf("query: %w", &pgconn.PgError{Code: "22003", Message: "bigint out of range"})
	err := creditFailure(id, overflow)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Contains(t, err.Error(), id.String())

	other := errors.New("connection reset")
	err = creditFailure(id, other)
	assert.ErrorIs(t, err, other)
	assert.False(t, domain.IsKind(err, domain.KindInvalidAmount))
}
