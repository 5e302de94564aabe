package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertExclusive(t *testing.T, l Locker) {
	t.Helper()

	const n = 32
	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
		counter int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "alice")
			if !assert.NoError(t, err) {
				return
			}
			cur := atomic.AddInt32(&inside, 1)
			for {
				prev := atomic.LoadInt32(&maxSeen)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, cur) {
					break
				}
			}
			atomic.AddInt32(&counter, 1)
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxSeen)
	assert.EqualValues(t, n, atomic.LoadInt32(&counter))
}

func TestLocal_MutualExclusion(t *testing.T) {
	t.Parallel()

	l := NewLocal()
	assertExclusive(t, l)
	assert.Equal(t, 0, l.size())
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	l := NewLocal()
	unlockA, err := l.Lock(context.Background(), "alice")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "bob")
	require.NoError(t, err)
	unlockB()
}

func TestLocal_ContextCancel(t *testing.T) {
	t.Parallel()

	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.size())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis_MutualExclusion(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	l := NewRedis(rdb, WithRetry(time.Millisecond))
	assertExclusive(t, l)
	assert.False(t, mr.Exists(defaultPrefix+"alice"))
}

func TestRedis_UnlockKeepsForeignLock(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	l := NewRedis(rdb, WithPrefix("test:"), WithLease(time.Second))

	unlock, err := l.Lock(context.Background(), "alice")
	require.NoError(t, err)

	// lease lost and taken over by another holder
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:alice", "someone-else"))

	unlock()
	got, err := mr.Get("test:alice")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_ContextCancel(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	l := NewRedis(rdb)

	unlock, err := l.Lock(context.Background(), "alice")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
