package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexExcludes(t *testing.T) {
	m := NewMutex()
	release, err := m.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := m.Lock(context.Background())
	require.NoError(t, err)
	release2()
}

func newRedisLock(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedis(rdb, "slotsched:ledger", time.Minute)
	l.retry = 10 * time.Millisecond
	return l, mr
}

func TestRedisLockExcludes(t *testing.T) {
	l, _ := newRedisLock(t)
	ctx := context.Background()

	release, err := l.Lock(ctx)
	require.NoError(t, err)
	held, err := l.Held(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	waitCtx, cancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	held, err = l.Held(ctx)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRedisLockWaitsForRelease(t *testing.T) {
	l, _ := newRedisLock(t)
	ctx := context.Background()

	release, err := l.Lock(ctx)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := l.Lock(ctx)
		if err == nil {
			r2()
		}
		close(acquired)
	}()

	time.Sleep(30 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestRedisReleaseIgnoresForeignToken(t *testing.T) {
	l, mr := newRedisLock(t)
	release, err := l.Lock(context.Background())
	require.NoError(t, err)

	// simulate expiry and takeover by another process
	require.NoError(t, mr.Set("slotsched:ledger", "someone-else"))
	release()

	v, err := mr.Get("slotsched:ledger")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
