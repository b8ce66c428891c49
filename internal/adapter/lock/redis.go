package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
)

var _ ports.Locker = (*Redis)(nil)

// ErrEmptyKey is returned when WithLock is called with a blank key.
var ErrEmptyKey = errors.New("lock key cannot be empty")

// Options tunes RedLock acquisition.
type Options struct {
	// Expiry bounds how long a crashed holder can block others.
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits loan operations that finish well within a second.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Redis is a distributed Locker based on the RedLock algorithm, for
// deployments running several API instances.
type Redis struct {
	rs   *redsync.Redsync
	opts Options
	log  *zap.Logger
}

// NewRedis wraps client. Zero fields in opts fall back to DefaultOptions.
func NewRedis(client redis.UniversalClient, opts Options, log *zap.Logger) *Redis {
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries < 1 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Redis{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
		log:  log.Named("lock"),
	}
}

// WithLock runs fn while holding the distributed lock for key. fn's error
// is returned unchanged.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	mutex := r.rs.NewMutex(key,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		r.log.Warn("failed to acquire lock", zap.String("lock_key", key), zap.Error(err))
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	defer func() {
		// Release even when the caller's context is already cancelled.
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			r.log.Error("failed to release lock", zap.String("lock_key", key), zap.Bool("unlock_ok", ok), zap.Error(err))
		}
	}()

	return fn(ctx)
}
