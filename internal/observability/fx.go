package observability

import (
	"github.com/smallbiznis/clearline/internal/config"
	"github.com/smallbiznis/clearline/internal/observability/logger"
	"github.com/smallbiznis/clearline/internal/observability/metrics"
	"github.com/smallbiznis/clearline/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg config.Config) logger.Config {
	debug := cfg.Logger.Level == "debug" || !cfg.IsProduction()
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               cfg.Logger.Level,
		Format:              cfg.Logger.Format,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func provideTracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Metrics.ExporterEndpoint,
		ExporterProtocol: cfg.Metrics.ExporterProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}
}

func provideMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Metrics.Enabled,
		ExporterEndpoint: cfg.Metrics.ExporterEndpoint,
		ExporterProtocol: cfg.Metrics.ExporterProtocol,
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
}
