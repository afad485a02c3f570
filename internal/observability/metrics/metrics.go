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

// Metrics exposes application-level instruments.
type Metrics struct {
	usageIngest       metric.Int64Counter
	usageRejected     metric.Int64Counter
	emissionKg        metric.Float64Histogram
	rewardPoints      metric.Int64Counter
	rateLimitAllowed  metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
	factorTableLookup metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
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
		name = "footprint"
	}
	meter := provider.Meter(name)

	usageIngest, err := meter.Int64Counter("footprint_usage_ingest_total")
	if err != nil {
		return nil, err
	}
	usageRejected, err := meter.Int64Counter("footprint_usage_rejected_total")
	if err != nil {
		return nil, err
	}
	emissionKg, err := meter.Float64Histogram("footprint_emission_kg",
		metric.WithUnit("kg"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 1, 10, 100, 1000),
	)
	if err != nil {
		return nil, err
	}
	rewardPoints, err := meter.Int64Counter("footprint_reward_points_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("footprint_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("footprint_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	factorTableLookup, err := meter.Int64Counter("footprint_factor_table_reads_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		usageIngest:       usageIngest,
		usageRejected:     usageRejected,
		emissionKg:        emissionKg,
		rewardPoints:      rewardPoints,
		rateLimitAllowed:  rateLimitAllowed,
		rateLimitDenied:   rateLimitDenied,
		factorTableLookup: factorTableLookup,
	}, nil
}

// RecordUsageIngest counts a stored usage event and its emission.
func (m *Metrics) RecordUsageIngest(ctx context.Context, domain, source string, totalKg float64, points int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("domain", strings.TrimSpace(domain)),
		attribute.String("source", strings.TrimSpace(source)),
	)...)
	m.usageIngest.Add(ctx, 1, attrs)
	m.emissionKg.Record(ctx, totalKg, attrs)
	if points > 0 {
		m.rewardPoints.Add(ctx, points, attrs)
	}
}

// RecordUsageRejected counts an ingestion that did not reach the store.
func (m *Metrics) RecordUsageRejected(ctx context.Context, domain, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("domain", strings.TrimSpace(domain)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.usageRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFactorTableRead counts reads of the factor table by version.
func (m *Metrics) RecordFactorTableRead(ctx context.Context, version string) {
	if m == nil {
		return
	}
	m.factorTableLookup.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("factor_version", strings.TrimSpace(version)),
	)...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, scope, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, scope, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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

// Owner ids and emails never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"domain":         {},
	"source":         {},
	"scope":          {},
	"endpoint":       {},
	"status_code":    {},
	"reason":         {},
	"factor_version": {},
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
