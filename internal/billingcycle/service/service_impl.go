package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingcycledomain "github.com/khaja-app/khaja/internal/billingcycle/domain"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/config"
	obsmetrics "github.com/khaja-app/khaja/internal/observability/metrics"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const expireBatchSize = 200

type ServiceParam struct {
	fx.In

	Config          config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Repo            subscriptiondomain.Repository
	Subscriptionsvc subscriptiondomain.Service
	Metrics         *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock           clock.Clock
	repo            subscriptiondomain.Repository
	subscriptionsvc subscriptiondomain.Service
	metrics         *obsmetrics.Metrics

	gracePeriod time.Duration
}

func NewService(p ServiceParam) billingcycledomain.Service {
	gracePeriod := p.Config.Entitlement.GracePeriod
	if gracePeriod <= 0 {
		gracePeriod = 15 * 24 * time.Hour
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("billingcycle.service"),

		clock:           p.Clock,
		repo:            p.Repo,
		subscriptionsvc: p.Subscriptionsvc,
		metrics:         p.Metrics,

		gracePeriod: gracePeriod,
	}
}

// OnPaymentSucceeded implements domain.Service. The reset writes the same
// state however many times the event is delivered, so webhook retries are
// harmless.
func (s *Service) OnPaymentSucceeded(ctx context.Context, clientID string, paidAt time.Time) error {
	if paidAt.IsZero() {
		return billingcycledomain.ErrInvalidPaymentTime
	}

	subscription, err := s.findByClient(ctx, clientID)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	cycleEnd := paidAt.UTC().AddDate(0, 1, 0)
	if err := s.repo.ResetUsage(ctx, s.db, subscription.ID, cycleEnd, now); err != nil {
		return err
	}

	s.metrics.RecordCycleReset()
	s.log.Info("billing cycle reset",
		zap.String("subscription_id", subscription.ID.String()),
		zap.Time("cycle_end", cycleEnd),
	)

	if subscription.Status == subscriptiondomain.SubscriptionStatusSuspended {
		return s.subscriptionsvc.Transition(ctx,
			subscription.ID.String(),
			subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.TransitionReasonPaymentRecovered,
		)
	}
	return nil
}

// OnPaymentFailed implements domain.Service. Counters stay as they are so
// a recovered subscription picks up its cycle where it stopped.
func (s *Service) OnPaymentFailed(ctx context.Context, clientID string, failedAt time.Time) error {
	if failedAt.IsZero() {
		return billingcycledomain.ErrInvalidPaymentTime
	}

	subscription, err := s.findByClient(ctx, clientID)
	if err != nil {
		return err
	}
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		// Already suspended or terminal; re-delivery is a no-op.
		return nil
	}

	return s.subscriptionsvc.Transition(ctx,
		subscription.ID.String(),
		subscriptiondomain.SubscriptionStatusSuspended,
		subscriptiondomain.TransitionReasonPaymentFailed,
	)
}

// ExpireLapsed implements domain.Service.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().UTC().Add(-s.gracePeriod)
	lapsed, err := s.repo.ListLapsedActive(ctx, s.db, cutoff, expireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range lapsed {
		err := s.subscriptionsvc.Transition(ctx,
			lapsed[i].ID.String(),
			subscriptiondomain.SubscriptionStatusExpired,
			subscriptiondomain.TransitionReasonNotRenewed,
		)
		if err != nil {
			s.log.Error("expire lapsed subscription",
				zap.String("subscription_id", lapsed[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) findByClient(ctx context.Context, clientID string) (*subscriptiondomain.Subscription, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(clientID))
	if err != nil || id == 0 {
		return nil, subscriptiondomain.ErrInvalidClient
	}
	subscription, err := s.repo.FindActiveByClientID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}
