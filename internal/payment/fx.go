package payment

import (
	"github.com/khaja-app/khaja/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.webhook",
	fx.Provide(webhook.NewService),
)
