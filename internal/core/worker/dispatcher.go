// Package worker delivers queued webhook jobs.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

// MaxAttempts is how many retries a job gets before it is marked FAILED.
const MaxAttempts = 5

// Sender delivers one webhook body.
type Sender interface {
	SendWebhook(ctx context.Context, url string, body []byte) error
}

// Dispatcher polls the job queue and delivers due jobs.
type Dispatcher struct {
	queue    ports.JobQueue
	sender   Sender
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(queue ports.JobQueue, sender Sender, interval time.Duration, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		queue:    queue,
		sender:   sender,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Backoff is the delay before the next attempt of a job that has already
// been retried attempts times.
func Backoff(attempts int) time.Duration {
	return time.Duration(attempts*10+10) * time.Second
}

// Run drains due jobs every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("webhook worker started", zap.Duration("interval", d.interval))
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.Drain(ctx)
		select {
		case <-ctx.Done():
			d.log.Info("webhook worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Drain processes jobs until none is due and returns how many it handled.
func (d *Dispatcher) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		ok, err := d.ProcessOne(ctx)
		if err != nil {
			d.log.Error("worker: queue error", zap.Error(err))
			return n
		}
		if !ok {
			return n
		}
		n++
	}
	return n
}

// ProcessOne claims and delivers a single job. It reports false when no job
// was due.
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	job, ok, err := d.queue.Claim(ctx)
	if err != nil || !ok {
		return false, err
	}
	log := d.log.With(zap.Stringer("job_id", job.ID), zap.String("url", job.URL))

	if !json.Valid(job.Payload) {
		log.Error("worker: payload is not JSON, failing job")
		return true, d.queue.Fail(ctx, job.ID)
	}

	log.Debug("worker: processing job", zap.Int("attempts", job.Attempts))
	if err := d.sender.SendWebhook(ctx, job.URL, job.Payload); err != nil {
		if job.Attempts >= MaxAttempts {
			log.Error("worker: job marked as FAILED, max attempts reached", zap.Error(err))
			return true, d.queue.Fail(ctx, job.ID)
		}
		next := d.now().Add(Backoff(job.Attempts))
		log.Warn("worker: webhook failed, scheduled retry",
			zap.Error(err),
			zap.Int("attempts", job.Attempts),
			zap.Time("next_run", next))
		return true, d.queue.Retry(ctx, job.ID, next)
	}

	log.Info("worker: webhook sent")
	return true, d.queue.Complete(ctx, job.ID)
}
