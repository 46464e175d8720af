package webhook

import (
	"context"
	"errors"
	"net/http"

	billingcycledomain "github.com/khaja-app/khaja/internal/billingcycle/domain"
	"github.com/khaja-app/khaja/internal/clock"
	"github.com/khaja-app/khaja/internal/config"
	paymentdomain "github.com/khaja-app/khaja/internal/payment/domain"
	"github.com/khaja-app/khaja/internal/payment/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Config          config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	Billingcyclesvc billingcycledomain.Service
}

type Service struct {
	log *zap.Logger

	clock           clock.Clock
	adapter         *stripe.Adapter
	billingcyclesvc billingcycledomain.Service
}

func NewService(p ServiceParam) paymentdomain.WebhookService {
	return &Service{
		log: p.Log.Named("payment.webhook"),

		clock:           p.Clock,
		adapter:         stripe.NewAdapter(p.Config.Webhook.StripeSecret, p.Config.Webhook.Tolerance),
		billingcyclesvc: p.Billingcyclesvc,
	}
}

// HandleStripe implements domain.WebhookService. Ignored event types are
// acknowledged so the provider stops retrying them.
func (s *Service) HandleStripe(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(payload, headers, s.clock.Now()); err != nil {
		return err
	}

	event, err := s.adapter.Parse(payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	s.log.Info("payment event received",
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("type", event.Type),
		zap.String("client_id", event.ClientID),
	)

	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		return s.billingcyclesvc.OnPaymentSucceeded(ctx, event.ClientID, event.OccurredAt)
	case paymentdomain.EventTypePaymentFailed:
		return s.billingcyclesvc.OnPaymentFailed(ctx, event.ClientID, event.OccurredAt)
	default:
		return paymentdomain.ErrInvalidEvent
	}
}
