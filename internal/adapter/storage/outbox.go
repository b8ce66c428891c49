package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var (
	_ ports.Outbox   = (*JobQueue)(nil)
	_ ports.JobQueue = (*JobQueue)(nil)
)

// JobQueue stores webhook jobs in webhook_jobs. Enqueue shares the caller's
// transaction, so a rolled-back loan change never emits an event.
type JobQueue struct {
	db *pgxpool.Pool
}

func NewJobQueue(db *pgxpool.Pool) *JobQueue {
	return &JobQueue{db: db}
}

func (q *JobQueue) Enqueue(ctx context.Context, url string, payload []byte) error {
	query := `INSERT INTO webhook_jobs (id, url, payload) VALUES ($1, $2, $3)`
	if _, err := conn(ctx, q.db).Exec(ctx, query, uuid.New(), url, payload); err != nil {
		return fmt.Errorf("failed to enqueue webhook: %w", err)
	}
	return nil
}

// Claim marks the oldest due job PROCESSING. SKIP LOCKED lets several
// workers poll the same table.
func (q *JobQueue) Claim(ctx context.Context) (ports.Job, bool, error) {
	query := `
		UPDATE webhook_jobs SET status = 'PROCESSING'
		WHERE id = (
			SELECT id FROM webhook_jobs
			WHERE status = 'PENDING' AND next_run_at <= now()
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, url, payload, attempts, next_run_at, created_at
	`
	var job ports.Job
	err := q.db.QueryRow(ctx, query).Scan(
		&job.ID, &job.URL, &job.Payload, &job.Attempts, &job.NextRunAt, &job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.Job{}, false, nil
	}
	if err != nil {
		return ports.Job{}, false, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, true, nil
}

func (q *JobQueue) Complete(ctx context.Context, id uuid.UUID) error {
	return q.exec(ctx, `UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1`, id)
}

func (q *JobQueue) Retry(ctx context.Context, id uuid.UUID, nextRun time.Time) error {
	return q.exec(ctx,
		`UPDATE webhook_jobs SET status = 'PENDING', attempts = attempts + 1, next_run_at = $2 WHERE id = $1`,
		id, nextRun)
}

func (q *JobQueue) Fail(ctx context.Context, id uuid.UUID) error {
	return q.exec(ctx, `UPDATE webhook_jobs SET status = 'FAILED' WHERE id = $1`, id)
}

func (q *JobQueue) exec(ctx context.Context, query string, args ...any) error {
	if _, err := q.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}
