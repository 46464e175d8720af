package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, client_id, plan_id, status, start_at, next_reset_at, tasks_used,
	 version, suspended_at, canceled_at, expired_at, metadata, created_at, updated_at`

// lockSuffix returns the row-lock clause for dialects that support it.
// sqlite serializes writers on its own.
func lockSuffix(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, client_id, plan_id, status, start_at, next_reset_at, tasks_used,
			version, suspended_at, canceled_at, expired_at, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.ClientID,
		subscription.PlanID,
		subscription.Status,
		subscription.StartAt,
		subscription.NextResetAt,
		subscription.TasksUsed,
		subscription.Version,
		subscription.SuspendedAt,
		subscription.CanceledAt,
		subscription.ExpiredAt,
		subscription.Metadata,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	if err := r.loadUsage(ctx, db, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`+lockSuffix(db),
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	if err := r.loadUsage(ctx, db, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindActiveByClientID(ctx context.Context, db *gorm.DB, clientID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE client_id = ? AND status IN ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		clientID,
		[]subscriptiondomain.SubscriptionStatus{
			subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusSuspended,
		},
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	if err := r.loadUsage(ctx, db, &subscription); err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) loadUsage(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	var usage []subscriptiondomain.ServiceUsage
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, service_id, quantity, last_used_at, reset_at, created_at, updated_at
		 FROM service_usages
		 WHERE subscription_id = ?
		 ORDER BY service_id ASC`,
		subscription.ID,
	).Scan(&usage).Error
	if err != nil {
		return err
	}
	subscription.Usage = usage
	return nil
}

func (r *repo) SaveUsage(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription, readVersion int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE subscriptions
			 SET tasks_used = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`,
			subscription.TasksUsed,
			subscription.UpdatedAt,
			subscription.ID,
			readVersion,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return subscriptiondomain.ErrVersionConflict
		}
		subscription.Version = readVersion + 1

		for i := range subscription.Usage {
			row := &subscription.Usage[i]
			if err := tx.Exec(
				`INSERT INTO service_usages (
					id, subscription_id, service_id, quantity, last_used_at, reset_at, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (subscription_id, service_id) DO UPDATE SET
					quantity = EXCLUDED.quantity,
					last_used_at = EXCLUDED.last_used_at,
					updated_at = EXCLUDED.updated_at`,
				row.ID,
				row.SubscriptionID,
				row.ServiceID,
				row.Quantity,
				row.LastUsedAt,
				row.ResetAt,
				row.CreatedAt,
				row.UpdatedAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) ResetUsage(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, cycleEnd time.Time, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`UPDATE subscriptions
			 SET tasks_used = 0, next_reset_at = ?, version = version + 1, updated_at = ?
			 WHERE id = ?`,
			cycleEnd,
			now,
			subscriptionID,
		).Error; err != nil {
			return err
		}
		return tx.Exec(
			`UPDATE service_usages
			 SET quantity = 0, reset_at = ?, updated_at = ?
			 WHERE subscription_id = ?`,
			cycleEnd,
			now,
			subscriptionID,
		).Error
	})
}

func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, suspended_at = ?, canceled_at = ?, expired_at = ?, version = version + 1, updated_at = ?
		 WHERE id = ?`,
		subscription.Status,
		subscription.SuspendedAt,
		subscription.CanceledAt,
		subscription.ExpiredAt,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}

func (r *repo) ListLapsedActive(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE status IN ? AND next_reset_at < ?
		 ORDER BY next_reset_at ASC
		 LIMIT ?`,
		[]subscriptiondomain.SubscriptionStatus{
			subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusSuspended,
		},
		cutoff,
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}
