package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyRepository)(nil)

type IdempotencyRepository struct {
	db *pgxpool.Pool
}

func NewIdempotencyRepository(db *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (ports.CachedResponse, bool, error) {
	var resp ports.CachedResponse
	err := r.db.QueryRow(ctx,
		`SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1`, key,
	).Scan(&resp.Status, &resp.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.CachedResponse{}, false, nil
	}
	if err != nil {
		return ports.CachedResponse{}, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return resp, true, nil
}

// Save keeps the first response stored under key.
func (r *IdempotencyRepository) Save(ctx context.Context, key string, resp ports.CachedResponse) error {
	if resp.Body == nil {
		resp.Body = []byte{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key_id, response_status, response_body)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_id) DO NOTHING
	`, key, resp.Status, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}
