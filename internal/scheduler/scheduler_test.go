package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/lock"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cycleStub struct {
	expired int
	runs    int
	err     error
}

func (s *cycleStub) OnPaymentSucceeded(context.Context, string, time.Time) error { return nil }
func (s *cycleStub) OnPaymentFailed(context.Context, string, time.Time) error    { return nil }

func (s *cycleStub) ExpireLapsed(context.Context) (int, error) {
	s.runs++
	return s.expired, s.err
}

func newScheduler(t *testing.T, stub *cycleStub, locker *lock.Locker) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:             zap.NewNop(),
		Clock:           clock.NewFakeClock(time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)),
		BillingCycleSvc: stub,
		Locker:          locker,
	})
	require.NoError(t, err)
	return s
}

func TestRunOnceSweeps(t *testing.T) {
	stub := &cycleStub{expired: 3}
	s := newScheduler(t, stub, nil)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, stub.runs)
}

func TestRunOnceSkipsWhenLeaderLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewLocker(client)

	require.NoError(t, mr.Set(leaderLockKey, "another-instance"))

	stub := &cycleStub{}
	s := newScheduler(t, stub, locker)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, stub.runs)
}

func TestRunOnceReleasesLeaderLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewLocker(client)

	stub := &cycleStub{expired: 1}
	s := newScheduler(t, stub, locker)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, stub.runs)
	assert.False(t, mr.Exists(leaderLockKey))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 2, stub.runs)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
}
