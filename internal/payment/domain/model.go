// Package domain defines the inbound payment-event contracts. Events arrive
// as provider webhooks and are translated into billing-cycle outcomes.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// PaymentEvent is a provider-neutral payment outcome for one client.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	// ClientID comes from the provider metadata and identifies the
	// subscriber the payment belongs to.
	ClientID   string
	Amount     int64
	Currency   string
	OccurredAt time.Time
	RawPayload []byte
}

// WebhookService verifies and applies one provider webhook delivery.
type WebhookService interface {
	HandleStripe(ctx context.Context, payload []byte, headers http.Header) error
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrStaleTimestamp   = errors.New("stale_timestamp")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrMissingClient    = errors.New("missing_client_metadata")
)
