// Package observability wires metrics and tracing for the application.
package observability

import (
	"github.com/khaja-app/khaja/internal/observability/metrics"
	"github.com/khaja-app/khaja/pkg/telemetry"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	telemetry.Module,
	fx.Provide(metrics.New),
)
