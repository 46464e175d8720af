package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/config"
	"github.com/khaja-app/khaja/internal/entitlement"
	"github.com/khaja-app/khaja/internal/lock"
	"github.com/khaja-app/khaja/internal/notification"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	pkgdb "github.com/khaja-app/khaja/pkg/db"
	"github.com/khaja-app/khaja/pkg/db/option"
	"github.com/khaja-app/khaja/pkg/db/pagination"
	pkgrepository "github.com/khaja-app/khaja/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	repo      subscriptiondomain.Repository
	store     pkgrepository.Repository[subscriptiondomain.Subscription]
	catalogs  *catalog.Holder
	evaluator *entitlement.Evaluator
	locker    *lock.Locker
	notifier  notification.Notifier

	saveRetries int
	lockTTL     time.Duration
}

type ServiceParam struct {
	fx.In

	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      subscriptiondomain.Repository
	Catalogs  *catalog.Holder
	Evaluator *entitlement.Evaluator
	Locker    *lock.Locker `optional:"true"`
	Notifier  notification.Notifier
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	saveRetries := p.Config.Entitlement.SaveRetries
	if saveRetries <= 0 {
		saveRetries = 3
	}
	lockTTL := p.Config.Entitlement.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		store:     pkgrepository.ProvideStore[subscriptiondomain.Subscription](p.DB),
		catalogs:  p.Catalogs,
		evaluator: p.Evaluator,
		locker:    p.Locker,
		notifier:  p.Notifier,

		saveRetries: saveRetries,
		lockTTL:     lockTTL,
	}
}

// Create opens a subscription on the requested plan. A client holds at most
// one non-terminal subscription at a time.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	clientID, err := s.parseID(req.ClientID, subscriptiondomain.ErrInvalidClient)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	if _, ok := s.catalogs.Get().Plan(req.PlanID); !ok {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidPlan
	}

	existing, err := s.repo.FindActiveByClientID(ctx, s.db, clientID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if existing != nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionExists
	}

	now := s.clock.Now().UTC()
	startAt := now
	if req.StartAt != nil {
		startAt = req.StartAt.UTC()
	}

	subscription := subscriptiondomain.Subscription{
		ID:          s.genID.Generate(),
		ClientID:    clientID,
		PlanID:      req.PlanID,
		Status:      subscriptiondomain.SubscriptionStatusActive,
		StartAt:     startAt,
		NextResetAt: startAt.AddDate(0, 1, 0),
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &subscription); err != nil {
		// Racing creates land on the unique open-subscription index.
		if pkgdb.IsDuplicateKeyErr(err) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionExists
		}
		return subscriptiondomain.Subscription{}, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("plan_id", string(req.PlanID)),
	)
	return subscription, nil
}

// List pages through subscriptions for backoffice tooling, newest first.
func (s *Service) List(ctx context.Context, req subscriptiondomain.ListSubscriptionsRequest) (subscriptiondomain.ListSubscriptionsResponse, error) {
	filter := &subscriptiondomain.Subscription{}
	if status := strings.TrimSpace(req.Status); status != "" {
		parsed, err := parseStatusFilter(status)
		if err != nil {
			return subscriptiondomain.ListSubscriptionsResponse{}, err
		}
		filter.Status = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	options := []option.QueryOption{
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
		option.WithSortBy("created_at", "desc", map[string]bool{"created_at": true}),
	}
	if req.CreatedFrom != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "created_at",
			Operator: option.GTE,
			Value:    *req.CreatedFrom,
		}))
	}
	if req.CreatedTo != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "created_at",
			Operator: option.LTE,
			Value:    *req.CreatedTo,
		}))
	}

	items, err := s.store.Find(ctx, filter, options...)
	if err != nil {
		return subscriptiondomain.ListSubscriptionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *subscriptiondomain.Subscription) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	subscriptions := make([]subscriptiondomain.Subscription, 0, len(items))
	for _, item := range items {
		subscriptions = append(subscriptions, *item)
	}

	resp := subscriptiondomain.ListSubscriptionsResponse{Subscriptions: subscriptions}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func parseStatusFilter(status string) (subscriptiondomain.SubscriptionStatus, error) {
	switch parsed := subscriptiondomain.SubscriptionStatus(strings.ToUpper(status)); parsed {
	case subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusSuspended,
		subscriptiondomain.SubscriptionStatusCanceled,
		subscriptiondomain.SubscriptionStatusExpired:
		return parsed, nil
	default:
		return "", subscriptiondomain.ErrInvalidStatus
	}
}

// GetActiveByClientID implements domain.Service.
func (s *Service) GetActiveByClientID(ctx context.Context, clientID string) (subscriptiondomain.Subscription, error) {
	id, err := s.parseID(clientID, subscriptiondomain.ErrInvalidClient)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	item, err := s.repo.FindActiveByClientID(ctx, s.db, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if item == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *item, nil
}

// AvailableServices lists the services the client's plan currently unlocks,
// in catalog order.
func (s *Service) AvailableServices(ctx context.Context, clientID string) (subscriptiondomain.AvailableServicesResponse, error) {
	subscription, err := s.GetActiveByClientID(ctx, clientID)
	if err != nil {
		return subscriptiondomain.AvailableServicesResponse{}, err
	}

	ageMonths := subscription.AgeMonths(s.clock.Now())
	return subscriptiondomain.AvailableServicesResponse{
		PlanID:    subscription.PlanID,
		AgeMonths: ageMonths,
		Services:  s.evaluator.AvailableServices(subscription.PlanID, ageMonths),
	}, nil
}

// RequestService runs the entitlement gates and, when the request is
// allowed, debits the ledger. Refusals come back as decisions, not errors.
// Writers on the same subscription are serialized by the redis lock when
// one is configured, and by the version guard always.
func (s *Service) RequestService(ctx context.Context, req subscriptiondomain.RequestServiceRequest) (subscriptiondomain.RequestServiceResponse, error) {
	clientID, err := s.parseID(req.ClientID, subscriptiondomain.ErrInvalidClient)
	if err != nil {
		return subscriptiondomain.RequestServiceResponse{}, err
	}
	if req.ServiceID == "" {
		return subscriptiondomain.RequestServiceResponse{}, subscriptiondomain.ErrInvalidService
	}
	if req.Quantity <= 0 {
		return subscriptiondomain.RequestServiceResponse{}, subscriptiondomain.ErrInvalidQuantity
	}

	subscription, err := s.repo.FindActiveByClientID(ctx, s.db, clientID)
	if err != nil {
		return subscriptiondomain.RequestServiceResponse{}, err
	}
	if subscription == nil {
		return subscriptiondomain.RequestServiceResponse{}, subscriptiondomain.ErrSubscriptionNotFound
	}

	if s.locker != nil {
		key := "entitlement:subscription:" + subscription.ID.String()
		token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			s.log.Warn("lock acquire failed, relying on version guard", zap.Error(err))
		} else if !ok {
			return subscriptiondomain.RequestServiceResponse{}, subscriptiondomain.ErrConcurrentModification
		} else {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("lock release failed", zap.Error(err))
				}
			}()
		}
	}

	for attempt := 0; attempt < s.saveRetries; attempt++ {
		if attempt > 0 {
			subscription, err = s.repo.FindByID(ctx, s.db, subscription.ID)
			if err != nil {
				return subscriptiondomain.RequestServiceResponse{}, err
			}
			if subscription == nil {
				return subscriptiondomain.RequestServiceResponse{}, subscriptiondomain.ErrSubscriptionNotFound
			}
		}

		now := s.clock.Now().UTC()
		decision := s.evaluator.CanUse(subscription.View(now), req.ServiceID, req.Quantity)
		if !decision.Allowed {
			s.log.Info("service request refused",
				zap.String("subscription_id", subscription.ID.String()),
				zap.String("service_id", string(req.ServiceID)),
				zap.String("reason", string(decision.Reason)),
			)
			return subscriptiondomain.RequestServiceResponse{Decision: decision}, nil
		}

		next := subscription.ApplyUsage(req.ServiceID, req.Quantity, now)
		for i := range next.Usage {
			if next.Usage[i].ID == 0 {
				next.Usage[i].ID = s.genID.Generate()
			}
		}

		err = s.repo.SaveUsage(ctx, s.db, &next, subscription.Version)
		if err == subscriptiondomain.ErrVersionConflict {
			continue
		}
		if err != nil {
			return subscriptiondomain.RequestServiceResponse{}, err
		}

		s.notifier.Notify(ctx, notification.Event{
			Type:           notification.EventServiceRequested,
			ClientID:       clientID,
			SubscriptionID: next.ID,
			ServiceID:      req.ServiceID,
			Quantity:       req.Quantity,
			OccurredAt:     now,
		})
		return subscriptiondomain.RequestServiceResponse{
			Decision:     decision,
			Subscription: &next,
		}, nil
	}

	return subscriptiondomain.RequestServiceResponse{}, subscriptiondomain.ErrConcurrentModification
}

// Transition moves the subscription through its lifecycle. Re-applying the
// current status is a no-op so payment webhooks stay idempotent.
func (s *Service) Transition(ctx context.Context, subscriptionID string, target subscriptiondomain.SubscriptionStatus, reason subscriptiondomain.TransitionReason) error {
	id, err := s.parseID(subscriptionID, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return err
	}

	var event *notification.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if subscription.Status == target {
			return nil
		}
		if !canTransition(subscription.Status, target) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		subscription.Status = target
		subscription.UpdatedAt = now

		eventType := notification.EventType("")
		switch target {
		case subscriptiondomain.SubscriptionStatusSuspended:
			subscription.SuspendedAt = &now
			eventType = notification.EventSubscriptionSuspended
		case subscriptiondomain.SubscriptionStatusActive:
			subscription.SuspendedAt = nil
			eventType = notification.EventSubscriptionResumed
		case subscriptiondomain.SubscriptionStatusCanceled:
			subscription.CanceledAt = &now
			eventType = notification.EventSubscriptionCanceled
		case subscriptiondomain.SubscriptionStatusExpired:
			subscription.ExpiredAt = &now
			eventType = notification.EventSubscriptionExpired
		default:
			return subscriptiondomain.ErrInvalidTargetStatus
		}

		if err := s.repo.UpdateLifecycle(ctx, tx, subscription); err != nil {
			return err
		}

		s.log.Info("subscription transitioned",
			zap.String("subscription_id", subscription.ID.String()),
			zap.String("status", string(target)),
			zap.String("reason", string(reason)),
		)
		event = &notification.Event{
			Type:           eventType,
			ClientID:       subscription.ClientID,
			SubscriptionID: subscription.ID,
			OccurredAt:     now,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if event != nil {
		s.notifier.Notify(ctx, *event)
	}
	return nil
}

// canTransition encodes the lifecycle state machine. Terminal states admit
// nothing; suspension only pauses an active subscription.
func canTransition(from, to subscriptiondomain.SubscriptionStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case subscriptiondomain.SubscriptionStatusSuspended:
		return from == subscriptiondomain.SubscriptionStatusActive
	case subscriptiondomain.SubscriptionStatusActive:
		return from == subscriptiondomain.SubscriptionStatusSuspended
	case subscriptiondomain.SubscriptionStatusCanceled,
		subscriptiondomain.SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
