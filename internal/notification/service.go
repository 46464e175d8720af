package notification

import (
	"context"
	"fmt"

	"github.com/khaja-app/khaja/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Email email.Provider
}

type service struct {
	log   *zap.Logger
	email email.Provider
}

func NewService(p ServiceParam) Notifier {
	return &service{
		log:   p.Log.Named("notification.service"),
		email: p.Email,
	}
}

func (s *service) Notify(ctx context.Context, event Event) {
	s.log.Info("notification event",
		zap.String("type", string(event.Type)),
		zap.String("client_id", event.ClientID.String()),
		zap.String("subscription_id", event.SubscriptionID.String()),
		zap.String("service_id", string(event.ServiceID)),
		zap.Int("quantity", event.Quantity),
	)

	subject, body := render(event)
	if subject == "" {
		return
	}

	// Recipient resolution lives with the account collaborator; events are
	// delivered to its alert inbox for fan-out.
	if err := s.email.Send(ctx, []string{"alerts@khaja.app"}, subject, body); err != nil {
		s.log.Warn("notification delivery failed", zap.Error(err))
	}
}

func render(event Event) (subject, body string) {
	switch event.Type {
	case EventServiceRequested:
		return "Nouvelle demande de service",
			fmt.Sprintf("<p>Client %s a demandé %s (quantité %d).</p>", event.ClientID, event.ServiceID, event.Quantity)
	case EventSubscriptionSuspended:
		return "Abonnement suspendu",
			fmt.Sprintf("<p>L'abonnement %s est suspendu suite à un échec de paiement.</p>", event.SubscriptionID)
	case EventSubscriptionResumed:
		return "Abonnement réactivé",
			fmt.Sprintf("<p>L'abonnement %s est de nouveau actif.</p>", event.SubscriptionID)
	case EventSubscriptionExpired:
		return "Abonnement expiré",
			fmt.Sprintf("<p>L'abonnement %s a expiré.</p>", event.SubscriptionID)
	case EventSubscriptionCanceled:
		return "Abonnement résilié",
			fmt.Sprintf("<p>L'abonnement %s a été résilié.</p>", event.SubscriptionID)
	default:
		return "", ""
	}
}
