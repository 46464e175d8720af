package subscription

import (
	"github.com/khaja-app/khaja/internal/subscription/repository"
	"github.com/khaja-app/khaja/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
