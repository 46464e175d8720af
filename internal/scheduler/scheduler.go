// Package scheduler runs the periodic maintenance jobs of the usage
// ledger: today that is the expiry sweep for subscriptions that lapsed
// past the grace period.
package scheduler

import (
	"context"
	"errors"
	"time"

	billingcycledomain "github.com/khaja-app/khaja/internal/billingcycle/domain"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const leaderLockKey = "scheduler:leader"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	BillingCycleSvc billingcycledomain.Service
	Locker          *lock.Locker `optional:"true"`
	Config          Config       `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	billingCycleSvc billingcycledomain.Service
	locker          *lock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BillingCycleSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler"),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		billingCycleSvc: p.BillingCycleSvc,
		locker:          p.Locker,
	}, nil
}

// RunOnce executes one sweep. When redis is configured only the instance
// holding the leader lock sweeps; everyone else skips the run.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, leaderLockKey, s.cfg.JobTimeout)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), leaderLockKey, token); err != nil {
				s.log.Warn("leader lock release failed", zap.Error(err))
			}
		}()
	}

	start := s.clock.Now()
	expired, err := s.billingCycleSvc.ExpireLapsed(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.log.Info("expired lapsed subscriptions",
			zap.Int("count", expired),
			zap.Duration("took", time.Since(start)),
		)
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
