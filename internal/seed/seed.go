// Package seed provisions demo data for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/khaja-app/khaja/internal/catalog"
	subscriptiondomain "github.com/khaja-app/khaja/internal/subscription/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DemoClientID is the fixed client used by the demo subscription so local
// requests can send a stable X-Client-ID.
const DemoClientID snowflake.ID = 1000001

// EnsureDemoSubscription creates one active subscription on forfait2 when
// the subscriptions table is empty. Re-running is a no-op.
func EnsureDemoSubscription(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&subscriptiondomain.Subscription{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		subscription := subscriptiondomain.Subscription{
			ID:          node.Generate(),
			ClientID:    DemoClientID,
			PlanID:      catalog.PlanForfait2,
			Status:      subscriptiondomain.SubscriptionStatusActive,
			StartAt:     now,
			NextResetAt: now.AddDate(0, 1, 0),
			Metadata:    datatypes.JSONMap{"seeded": true},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.Create(&subscription).Error
	})
}
