package entitlement

import (
	"github.com/khaja-app/khaja/internal/catalog"
	"github.com/khaja-app/khaja/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement",
	fx.Provide(func(holder *catalog.Holder, cfg config.Config) *Evaluator {
		return NewEvaluator(holder, cfg.Entitlement.DelayedAfterMonths)
	}),
)
