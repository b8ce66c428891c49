package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := k.WithLock(context.Background(), "lock:loan:1", func(context.Context) error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size(), "idle keys are released")
}

func TestKeyedDistinctKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()
	inside := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = k.WithLock(context.Background(), "a", func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := k.WithLock(ctx, "b", func(context.Context) error { return nil })
	require.NoError(t, err)
	close(release)
}

func TestKeyedHonoursContext(t *testing.T) {
	k := NewKeyed()
	inside := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = k.WithLock(context.Background(), "a", func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := k.WithLock(ctx, "a", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
