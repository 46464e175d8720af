// Package notification turns ledger events into outbound alerts. Delivery
// is best effort; the ledger never fails because a notification did.
package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/khaja-app/khaja/internal/catalog"
)

type EventType string

const (
	EventServiceRequested      EventType = "service_requested"
	EventSubscriptionSuspended EventType = "subscription_suspended"
	EventSubscriptionResumed   EventType = "subscription_resumed"
	EventSubscriptionExpired   EventType = "subscription_expired"
	EventSubscriptionCanceled  EventType = "subscription_canceled"
)

type Event struct {
	Type           EventType
	ClientID       snowflake.ID
	SubscriptionID snowflake.ID
	ServiceID      catalog.ServiceID
	Quantity       int
	OccurredAt     time.Time
}

type Notifier interface {
	Notify(ctx context.Context, event Event)
}
