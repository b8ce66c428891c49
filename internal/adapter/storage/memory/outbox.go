package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var (
	_ ports.Outbox           = (*Store)(nil)
	_ ports.JobQueue         = (*Store)(nil)
	_ ports.IdempotencyStore = (*Store)(nil)
)

type jobStatus string

const (
	jobPending    jobStatus = "PENDING"
	jobProcessing jobStatus = "PROCESSING"
	jobCompleted  jobStatus = "COMPLETED"
	jobFailed     jobStatus = "FAILED"
)

type jobRecord struct {
	job    ports.Job
	status jobStatus
}

// Enqueue adds a webhook job. Inside a unit the job becomes visible on
// commit and is dropped on rollback.
func (s *Store) Enqueue(ctx context.Context, url string, payload []byte) error {
	now := s.now().UTC()
	rec := &jobRecord{
		job: ports.Job{
			ID:        uuid.New(),
			URL:       url,
			Payload:   append([]byte(nil), payload...),
			NextRunAt: now,
			CreatedAt: now,
		},
		status: jobPending,
	}

	push := func() {
		s.jobsMu.Lock()
		s.jobs = append(s.jobs, rec)
		s.jobsMu.Unlock()
	}

	if t := txFrom(ctx); t != nil {
		t.onCommit = append(t.onCommit, push)
		return nil
	}
	push()
	return nil
}

// Claim implements ports.JobQueue.
func (s *Store) Claim(_ context.Context) (ports.Job, bool, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := s.now()
	for _, rec := range s.jobs {
		if rec.status == jobPending && !rec.job.NextRunAt.After(now) {
			rec.status = jobProcessing
			return rec.job, true, nil
		}
	}
	return ports.Job{}, false, nil
}

// Complete implements ports.JobQueue.
func (s *Store) Complete(_ context.Context, id uuid.UUID) error {
	s.setJob(id, func(rec *jobRecord) { rec.status = jobCompleted })
	return nil
}

// Retry implements ports.JobQueue.
func (s *Store) Retry(_ context.Context, id uuid.UUID, nextRun time.Time) error {
	s.setJob(id, func(rec *jobRecord) {
		rec.status = jobPending
		rec.job.Attempts++
		rec.job.NextRunAt = nextRun
	})
	return nil
}

// Fail implements ports.JobQueue.
func (s *Store) Fail(_ context.Context, id uuid.UUID) error {
	s.setJob(id, func(rec *jobRecord) { rec.status = jobFailed })
	return nil
}

func (s *Store) setJob(id uuid.UUID, fn func(*jobRecord)) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, rec := range s.jobs {
		if rec.job.ID == id {
			fn(rec)
			return
		}
	}
}

// JobCounts reports how many jobs are in each state, keyed by status name.
// It is a diagnostics view for embedders and tests; the job queue port does
// not need it, and the Postgres queue exposes the same data through its
// jobs table.
func (s *Store) JobCounts() map[string]int {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	out := make(map[string]int)
	for _, rec := range s.jobs {
		out[string(rec.status)]++
	}
	return out
}

// Lookup implements ports.IdempotencyStore.
func (s *Store) Lookup(_ context.Context, key string) (ports.CachedResponse, bool, error) {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	resp, ok := s.idem[key]
	return resp, ok, nil
}

// Save implements ports.IdempotencyStore.
func (s *Store) Save(_ context.Context, key string, resp ports.CachedResponse) error {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	if _, exists := s.idem[key]; !exists {
		resp.Body = append([]byte(nil), resp.Body...)
		s.idem[key] = resp
	}
	return nil
}
