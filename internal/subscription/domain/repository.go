package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindActiveByClientID(ctx context.Context, db *gorm.DB, clientID snowflake.ID) (*Subscription, error)
	// SaveUsage persists the aggregate's counters and usage rows guarded by
	// the version the subscription was read at. ErrVersionConflict is
	// returned when another writer got there first.
	SaveUsage(ctx context.Context, db *gorm.DB, subscription *Subscription, readVersion int64) error
	// ResetUsage zeroes the task counter and every usage row in a single
	// transaction, stamping the new cycle end.
	ResetUsage(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, cycleEnd time.Time, now time.Time) error
	UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	// ListLapsedActive returns non-terminal subscriptions whose next reset
	// date is older than cutoff, for the expiry sweep.
	ListLapsedActive(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Subscription, error)
}
