package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/vmtune/pkg/adapters/redis"
	"github.com/aretw0/vmtune/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.DistributedLocker = (*redis.Locker)(nil)

func newLocker(t *testing.T) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewLocker(client, "vmtune:"), mr
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, "win11", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	// Verify key set in redis
	assert.True(t, mr.Exists("vmtune:lock:win11"), "Lock key should be set in Redis")
	assert.Equal(t, 5*time.Second, mr.TTL("vmtune:lock:win11"))

	// 2. Release Lock
	require.NoError(t, unlock(ctx))

	// Verify key removed
	assert.False(t, mr.Exists("vmtune:lock:win11"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	locker1, mr := newLocker(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()
	locker2 := redis.NewLocker(client, "vmtune:") // Same prefix -> contention
	ctx := context.Background()

	// 1. Client 1 acquires lock
	unlock1, err := locker1.Lock(ctx, "grub", 5*time.Second)
	require.NoError(t, err)

	// 2. Client 2 polls until its deadline
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = locker2.Lock(ctxTimeout, "grub", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 3. Client 1 unlocks
	require.NoError(t, unlock1(ctx))

	// 4. Client 2 tries again (should succeed)
	unlock2, err := locker2.Lock(ctx, "grub", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("vmtune:lock:grub"))
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "win11", time.Second)
	require.NoError(t, err)

	// The lock expires and another host takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("vmtune:lock:win11", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("vmtune:lock:win11")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	locker, err := redis.Dial(context.Background(), addr, "vmtune:")
	require.NoError(t, err)
	defer locker.Close()

	// Addr is unusable once the server is closed.
	mr.Close()
	_, err = redis.Dial(context.Background(), addr, "vmtune:")
	assert.Error(t, err)
}
