package domain

import (
	"context"
	"errors"
	"time"

	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/entitlement"
	"github.com/khaja-app/khaja/pkg/db/pagination"
)

type CreateSubscriptionRequest struct {
	ClientID string         `json:"client_id"`
	PlanID   catalog.PlanID `json:"plan_id"`
	StartAt  *time.Time     `json:"start_at,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type ListSubscriptionsRequest struct {
	Status      string
	PageToken   string
	PageSize    int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListSubscriptionsResponse struct {
	pagination.PageInfo
	Subscriptions []Subscription `json:"subscriptions"`
}

type RequestServiceRequest struct {
	ClientID  string            `json:"client_id"`
	ServiceID catalog.ServiceID `json:"service_id"`
	Quantity  int               `json:"quantity"`
}

// RequestServiceResponse carries the evaluator's decision; Subscription is
// only set when the request was accepted and persisted.
type RequestServiceResponse struct {
	Decision     entitlement.Decision `json:"decision"`
	Subscription *Subscription        `json:"subscription,omitempty"`
}

type AvailableServicesResponse struct {
	PlanID    catalog.PlanID                 `json:"plan_id"`
	AgeMonths int                            `json:"age_months"`
	Services  []entitlement.AvailableService `json:"services"`
}

type TransitionReason string

const (
	TransitionReasonPaymentFailed    TransitionReason = "payment_failed"
	TransitionReasonPaymentRecovered TransitionReason = "payment_recovered"
	TransitionReasonClientCanceled   TransitionReason = "client_canceled"
	TransitionReasonNotRenewed       TransitionReason = "not_renewed"
)

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	List(ctx context.Context, req ListSubscriptionsRequest) (ListSubscriptionsResponse, error)
	GetActiveByClientID(ctx context.Context, clientID string) (Subscription, error)
	RequestService(ctx context.Context, req RequestServiceRequest) (RequestServiceResponse, error)
	AvailableServices(ctx context.Context, clientID string) (AvailableServicesResponse, error)
	Transition(ctx context.Context, subscriptionID string, target SubscriptionStatus, reason TransitionReason) error
}

var (
	ErrInvalidClient          = errors.New("invalid_client")
	ErrInvalidPlan            = errors.New("invalid_plan")
	ErrInvalidService         = errors.New("invalid_service")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidSubscription    = errors.New("invalid_subscription")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrSubscriptionNotFound   = errors.New("subscription_not_found")
	ErrSubscriptionExists     = errors.New("subscription_already_active")
	ErrInvalidTargetStatus    = errors.New("invalid_target_status")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrVersionConflict        = errors.New("version_conflict")
	ErrConcurrentModification = errors.New("concurrent_modification")
)
