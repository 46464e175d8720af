package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingcycledomain "github.com/khaja-app/khaja/internal/billingcycle/domain"
	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/config"
	"github.com/khaja-app/khaja/internal/entitlement"
	"github.com/khaja-app/khaja/internal/notification"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	subscriptionrepository "github.com/khaja-app/khaja/internal/subscription/repository"
	subscriptionservice "github.com/khaja-app/khaja/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testClientID = "81234567890"

type notifierStub struct {
	events []notification.Event
}

func (n *notifierStub) Notify(_ context.Context, event notification.Event) {
	n.events = append(n.events, event)
}

type fixture struct {
	cyclesvc billingcycledomain.Service
	subsvc   subscriptiondomain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	notifier *notifierStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.ServiceUsage{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	holder := catalog.NewStaticHolder(catalog.Default())
	clk := clock.NewFakeClock(time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC))
	notifier := &notifierStub{}
	repo := subscriptionrepository.Provide()
	cfg := config.Config{
		Entitlement: config.EntitlementConfig{
			DelayedAfterMonths: 6,
			SaveRetries:        3,
			GracePeriod:        15 * 24 * time.Hour,
		},
	}

	subsvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		Config:    cfg,
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repo,
		Catalogs:  holder,
		Evaluator: entitlement.NewEvaluator(holder, 6),
		Notifier:  notifier,
	})

	cyclesvc := NewService(ServiceParam{
		Config:          cfg,
		DB:              db,
		Log:             zap.NewNop(),
		Clock:           clk,
		Repo:            repo,
		Subscriptionsvc: subsvc,
	})

	return &fixture{cyclesvc: cyclesvc, subsvc: subsvc, db: db, clock: clk, notifier: notifier}
}

func (f *fixture) createWithUsage(t *testing.T) subscriptiondomain.Subscription {
	t.Helper()
	ctx := context.Background()

	sub, err := f.subsvc.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{
		ClientID: testClientID,
		PlanID:   catalog.PlanForfait2,
	})
	require.NoError(t, err)

	resp, err := f.subsvc.RequestService(ctx, subscriptiondomain.RequestServiceRequest{
		ClientID:  testClientID,
		ServiceID: catalog.ServiceTontePelouse,
		Quantity:  150,
	})
	require.NoError(t, err)
	require.True(t, resp.Decision.Allowed)
	return sub
}

func TestPaymentSucceededResetsCycle(t *testing.T) {
	f := newFixture(t)
	f.createWithUsage(t)
	ctx := context.Background()

	paidAt := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.cyclesvc.OnPaymentSucceeded(ctx, testClientID, paidAt))

	current, err := f.subsvc.GetActiveByClientID(ctx, testClientID)
	require.NoError(t, err)
	assert.Zero(t, current.TasksUsed)
	assert.Zero(t, current.UsedQuantity(catalog.ServiceTontePelouse))
	assert.Equal(t, paidAt.AddDate(0, 1, 0), current.NextResetAt)

	// Usage rows are stamped with the end of the new cycle, not the reset
	// instant.
	require.Len(t, current.Usage, 1)
	require.NotNil(t, current.Usage[0].ResetAt)
	assert.True(t, current.Usage[0].ResetAt.Equal(paidAt.AddDate(0, 1, 0)))
}

func TestPaymentSucceededIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.createWithUsage(t)
	ctx := context.Background()

	paidAt := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.cyclesvc.OnPaymentSucceeded(ctx, testClientID, paidAt))
	require.NoError(t, f.cyclesvc.OnPaymentSucceeded(ctx, testClientID, paidAt))

	current, err := f.subsvc.GetActiveByClientID(ctx, testClientID)
	require.NoError(t, err)
	assert.Zero(t, current.TasksUsed)
	assert.Equal(t, paidAt.AddDate(0, 1, 0), current.NextResetAt)
}

func TestPaymentFailedSuspendsAndPreservesCounters(t *testing.T) {
	f := newFixture(t)
	f.createWithUsage(t)
	ctx := context.Background()

	failedAt := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.cyclesvc.OnPaymentFailed(ctx, testClientID, failedAt))

	current, err := f.subsvc.GetActiveByClientID(ctx, testClientID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusSuspended, current.Status)
	assert.Equal(t, 1, current.TasksUsed)
	assert.Equal(t, 150, current.UsedQuantity(catalog.ServiceTontePelouse))

	// Re-delivery of the failure is a no-op.
	require.NoError(t, f.cyclesvc.OnPaymentFailed(ctx, testClientID, failedAt))
}

func TestPaymentSucceededReactivatesSuspended(t *testing.T) {
	f := newFixture(t)
	f.createWithUsage(t)
	ctx := context.Background()

	failedAt := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.cyclesvc.OnPaymentFailed(ctx, testClientID, failedAt))

	paidAt := failedAt.Add(48 * time.Hour)
	require.NoError(t, f.cyclesvc.OnPaymentSucceeded(ctx, testClientID, paidAt))

	current, err := f.subsvc.GetActiveByClientID(ctx, testClientID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, current.Status)
	assert.Zero(t, current.TasksUsed)

	resumed := 0
	for _, e := range f.notifier.events {
		if e.Type == notification.EventSubscriptionResumed {
			resumed++
		}
	}
	assert.Equal(t, 1, resumed)
}

func TestExpireLapsed(t *testing.T) {
	f := newFixture(t)
	sub := f.createWithUsage(t)
	ctx := context.Background()

	// Created 2026-03-01, next reset 2026-04-01, grace 15 days.
	f.clock.Set(time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC))
	expired, err := f.cyclesvc.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	f.clock.Set(time.Date(2026, time.April, 17, 0, 0, 0, 0, time.UTC))
	expired, err = f.cyclesvc.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	_, err = f.subsvc.GetActiveByClientID(ctx, testClientID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)

	var persisted subscriptiondomain.Subscription
	require.NoError(t, f.db.Raw(`SELECT id, status, expired_at FROM subscriptions WHERE id = ?`, sub.ID).Scan(&persisted).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusExpired, persisted.Status)
	require.NotNil(t, persisted.ExpiredAt)
}

func TestPaymentEventsForUnknownClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	at := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, f.cyclesvc.OnPaymentSucceeded(ctx, testClientID, at), subscriptiondomain.ErrSubscriptionNotFound)
	assert.ErrorIs(t, f.cyclesvc.OnPaymentFailed(ctx, testClientID, at), subscriptiondomain.ErrSubscriptionNotFound)
	assert.ErrorIs(t, f.cyclesvc.OnPaymentSucceeded(ctx, testClientID, time.Time{}), billingcycledomain.ErrInvalidPaymentTime)
}
