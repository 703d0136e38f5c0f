package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes reconciliation instruments. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	calculations      metric.Int64Counter
	recalculations    metric.Int64Counter
	matchesCreated    metric.Int64Counter
	reasoningRequests metric.Int64Counter
	schedulerJobs     metric.Int64Counter

	scrape *scrapeCounters
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "clearline"
	}
	meter := provider.Meter(name)

	calculations, err := meter.Int64Counter("clearline_calculations_total")
	if err != nil {
		return nil, err
	}
	recalculations, err := meter.Int64Counter("clearline_recalculations_total")
	if err != nil {
		return nil, err
	}
	matchesCreated, err := meter.Int64Counter("clearline_matches_created_total")
	if err != nil {
		return nil, err
	}
	reasoningRequests, err := meter.Int64Counter("clearline_reasoning_requests_total")
	if err != nil {
		return nil, err
	}

	schedulerJobs, err := meter.Int64Counter("clearline_scheduler_jobs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		calculations:      calculations,
		recalculations:    recalculations,
		matchesCreated:    matchesCreated,
		reasoningRequests: reasoningRequests,
		schedulerJobs:     schedulerJobs,
		scrape:            defaultScrapeCounters(),
	}, nil
}

// RecordCalculation counts a duty calculation by outcome (preview, applied, failed).
func (m *Metrics) RecordCalculation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.calculations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.scrape != nil {
		m.scrape.calculations.WithLabelValues(label(outcome)).Inc()
	}
}

// RecordRecalculation counts shipment recalculations by outcome.
func (m *Metrics) RecordRecalculation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.recalculations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.scrape != nil {
		m.scrape.recalculations.WithLabelValues(label(outcome)).Inc()
	}
}

// RecordMatchesCreated adds n persisted matches for the given method.
func (m *Metrics) RecordMatchesCreated(ctx context.Context, method string, n int) {
	if m == nil || n <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("method", strings.TrimSpace(method)))
	m.matchesCreated.Add(ctx, int64(n), metric.WithAttributes(attrs...))
	if m.scrape != nil {
		m.scrape.matchesCreated.WithLabelValues(label(method)).Add(float64(n))
	}
}

// RecordReasoningRequest counts supplementary matcher calls by outcome (ok, error, skipped).
func (m *Metrics) RecordReasoningRequest(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.reasoningRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.scrape != nil {
		m.scrape.reasoningRequests.WithLabelValues(label(outcome)).Inc()
	}
}

// RecordSchedulerJob counts scheduler job runs by job name and outcome (ok, error, timeout).
func (m *Metrics) RecordSchedulerJob(ctx context.Context, job, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job", strings.TrimSpace(job)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.schedulerJobs.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.scrape != nil {
		m.scrape.schedulerJobs.WithLabelValues(label(job), label(outcome)).Inc()
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome": {},
	"method":  {},
	"country": {},
	"job":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
