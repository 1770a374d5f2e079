package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/aretw0/vmtune/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesSameTarget(t *testing.T) {
	manager := session.NewManager()
	ctx := context.Background()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "win11", func(context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond) // Simulate IO
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight, "one transaction per target")
	assert.Zero(t, manager.Active())
}

func TestManager_DifferentTargetsRunConcurrently(t *testing.T) {
	manager := session.NewManager()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "win11", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- manager.WithLock(ctx, "grub", func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lock on another target blocked")
	}
	close(release)
}

func TestManager_WaitHonorsContext(t *testing.T) {
	manager := session.NewManager()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = manager.WithLock(context.Background(), "win11", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	called := false
	err := manager.WithLock(ctx, "win11", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)
	require.Eventually(t, func() bool { return manager.Active() == 0 }, time.Second, 10*time.Millisecond)

	// The abandoned wait must not leave the mutex held.
	assert.NoError(t, manager.WithLock(context.Background(), "win11", func(context.Context) error { return nil }))
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   map[string]time.Duration
	unlocked []string
	err      error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked == nil {
		f.locked = map[string]time.Duration{}
	}
	f.locked[key] = ttl
	return func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocked = append(f.unlocked, key)
		return ctx.Err()
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &fakeLocker{}
	manager := session.NewManager(session.WithLocker(locker), session.WithTTL(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	err := manager.WithLock(ctx, "win11", func(context.Context) error {
		cancel() // the unlock still goes out
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, locker.locked["win11"])
	assert.Equal(t, []string{"win11"}, locker.unlocked)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	locker := &fakeLocker{err: errors.New("redis down")}
	manager := session.NewManager(session.WithLocker(locker))

	err := manager.WithLock(context.Background(), "win11", func(context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
	assert.Zero(t, manager.Active())
}
