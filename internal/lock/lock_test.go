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

func newTestLocker(t *testing.T) *Locker {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client)
}

func TestTryLockExcludesSecondHolder(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "subscription:1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "subscription:1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "subscription:1", token))

	_, ok, err = locker.TryLock(ctx, "subscription:1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "subscription:2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale holder must not delete the current lock.
	require.NoError(t, locker.Release(ctx, "subscription:2", "not-the-token"))

	_, ok, err = locker.TryLock(ctx, "subscription:2", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "subscription:2", token))
}

func TestNilLocker(t *testing.T) {
	var locker *Locker
	_, _, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))
}
