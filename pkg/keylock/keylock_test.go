package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "req-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size(), "entries must be dropped once released")
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	releaseA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	ctxB, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	releaseB, err := l.Lock(ctxB, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocal_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocal()
	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, l.size())
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedis_LockAndRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedis(client, time.Second)
	ctx := context.Background()

	release, err := l.Lock(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"0xabc"))

	waitCtx, cancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "0xabc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.False(t, mr.Exists(keyPrefix+"0xabc"))

	release2, err := l.Lock(ctx, "0xabc")
	require.NoError(t, err)
	release2()
}

func TestRedis_ReleaseLeavesForeignLease(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedis(client, time.Second)

	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// lease expired and someone else took it
	require.NoError(t, mr.Set(keyPrefix+"k", "other-holder"))
	release()

	got, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
}

func TestRedis_LeaseExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedis(client, time.Second)
	ctx := context.Background()

	_, err := l.Lock(ctx, "stuck")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := l.Lock(ctx, "stuck")
	require.NoError(t, err)
	release()
}

func TestNewFromEnv_DefaultsToLocal(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	l, closeFn, err := NewFromEnv(context.Background(), 0)
	require.NoError(t, err)
	defer closeFn()
	_, ok := l.(*Local)
	assert.True(t, ok)
}

func TestNewFromEnv_Redis(t *testing.T) {
	mr, _ := setupTestRedis(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")
	l, closeFn, err := NewFromEnv(context.Background(), 0)
	require.NoError(t, err)
	defer closeFn()
	_, ok := l.(*Redis)
	assert.True(t, ok)
}

func TestNewFromEnv_RedisLeaseCoversMinimum(t *testing.T) {
	mr, _ := setupTestRedis(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")

	l, closeFn, err := NewFromEnv(context.Background(), 2*time.Minute)
	require.NoError(t, err)
	defer closeFn()

	release, err := l.Lock(context.Background(), "reward:0xa")
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 2*time.Minute, mr.TTL(keyPrefix+"reward:0xa"))

	short, closeShort, err := NewFromEnv(context.Background(), time.Second)
	require.NoError(t, err)
	defer closeShort()

	rel, err := short.Lock(context.Background(), "reward:0xb")
	require.NoError(t, err)
	defer rel()
	assert.Equal(t, defaultLeaseTTL, mr.TTL(keyPrefix+"reward:0xb"))
}
