// Package domain contains the subscription usage-ledger aggregate and its
// contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/khaja-app/khaja/internal/catalog"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusCanceled  SubscriptionStatus = "CANCELED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled || s == SubscriptionStatusExpired
}

// Subscription is the per-client usage ledger. All mutation goes through the
// entitlement evaluator's apply operation or the billing-cycle reset.
type Subscription struct {
	ID          snowflake.ID       `gorm:"primaryKey" json:"id"`
	ClientID    snowflake.ID       `gorm:"not null;index" json:"client_id"`
	PlanID      catalog.PlanID     `gorm:"type:text;not null" json:"plan_id"`
	Status      SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	StartAt     time.Time          `gorm:"not null" json:"start_at"`
	NextResetAt time.Time          `gorm:"not null" json:"next_reset_at"`
	// TasksUsed counts service-request events in the current billing month,
	// one per accepted request regardless of quantity.
	TasksUsed int `gorm:"not null;default:0" json:"tasks_used"`
	// Version guards read-check-mutate sequences against lost updates.
	Version     int64             `gorm:"not null;default:0" json:"version"`
	SuspendedAt *time.Time        `gorm:"" json:"suspended_at,omitempty"`
	CanceledAt  *time.Time        `gorm:"" json:"canceled_at,omitempty"`
	ExpiredAt   *time.Time        `gorm:"" json:"expired_at,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Usage holds the per-service ledger rows for the current cycle. Loaded
	// by the repository alongside the subscription row.
	Usage []ServiceUsage `gorm:"-" json:"usage,omitempty"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// ServiceUsage is one ledger row: cumulative quantity used for a service in
// the current billing cycle.
type ServiceUsage struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID      `gorm:"not null;uniqueIndex:idx_service_usage_sub_service" json:"subscription_id"`
	ServiceID      catalog.ServiceID `gorm:"type:text;not null;uniqueIndex:idx_service_usage_sub_service" json:"service_id"`
	Quantity       int               `gorm:"not null;default:0" json:"quantity"`
	LastUsedAt     *time.Time        `gorm:"" json:"last_used_at,omitempty"`
	ResetAt        *time.Time        `gorm:"" json:"reset_at,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ServiceUsage) TableName() string { return "service_usages" }

// UsedQuantity returns the cumulative quantity consumed for serviceID in the
// current cycle, zero when the service was never used.
func (s *Subscription) UsedQuantity(serviceID catalog.ServiceID) int {
	for i := range s.Usage {
		if s.Usage[i].ServiceID == serviceID {
			return s.Usage[i].Quantity
		}
	}
	return 0
}

// AgeMonths is the subscription tenure in whole calendar months: day of
// month is ignored, only the year and month components count.
func (s *Subscription) AgeMonths(now time.Time) int {
	return AgeMonths(s.StartAt, now)
}

// AgeMonths computes (nowYear-startYear)*12 + (nowMonth-startMonth).
func AgeMonths(start, now time.Time) int {
	return (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
}
