package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestLockersAreExclusive(t *testing.T) {
	redisLocker, _ := newRedisLocker(t)
	lockers := map[string]Locker{
		"local": NewLocalLocker(),
		"redis": redisLocker,
	}

	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			token, ok, err := l.TryLock(ctx, "renewal:tenant:1", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
			require.NotEmpty(t, token)

			_, ok, err = l.TryLock(ctx, "renewal:tenant:1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = l.TryLock(ctx, "renewal:tenant:2", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, l.Release(ctx, "renewal:tenant:1", "someone-else"))
			_, ok, err = l.TryLock(ctx, "renewal:tenant:1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, l.Release(ctx, "renewal:tenant:1", token))
			_, ok, err = l.TryLock(ctx, "renewal:tenant:1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestLockValidation(t *testing.T) {
	l := NewLocalLocker()
	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestLocalLockExpires(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, err = l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	l, mr := newRedisLocker(t)

	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = l.Release(ctx, "k", token)
	}()

	got, err := Acquire(ctx, l, "k", time.Minute, time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	assert.NotEqual(t, token, got)
}

func TestAcquireGivesUp(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Acquire(ctx, l, "k", time.Minute, 20*time.Millisecond, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
}
