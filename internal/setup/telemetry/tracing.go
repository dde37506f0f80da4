package telemetry

import (
	"context"

	"github.com/robalyx/chopper/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// ServiceName is reported with every trace.
const ServiceName = "chopper"

// SetupTracing configures the OpenTelemetry exporters when an Uptrace DSN is set.
// The returned function flushes and stops tracing; it is a no-op when tracing is disabled.
func SetupTracing(cfg *config.Telemetry, serviceType ServiceType, logger *zap.Logger) func(context.Context) {
	if cfg.UptraceDSN == "" {
		logger.Debug("Tracing disabled, no Uptrace DSN configured")
		return func(context.Context) {}
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(ServiceName+"-"+serviceType.String()),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	logger.Info("Tracing enabled", zap.String("environment", cfg.Environment))

	return func(ctx context.Context) {
		if err := uptrace.Shutdown(ctx); err != nil {
			logger.Warn("Failed to shut down tracing", zap.Error(err))
		}
	}
}
