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

// Metrics exposes the ledger's application-level instruments. All record
// methods are nil-safe so callers can hold an optional handle.
type Metrics struct {
	webhookEvents  metric.Int64Counter
	salesRecorded  metric.Int64Counter
	duplicateSales metric.Int64Counter
	credits        metric.Int64Counter
	fraudFlags     metric.Int64Counter
	rateFallbacks  metric.Int64Counter
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

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down meter provider")
			return provider.Shutdown(ctx)
		},
	})

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "ledger"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("ledger_webhook_events_total")
	if err != nil {
		return nil, err
	}
	salesRecorded, err := meter.Int64Counter("ledger_sales_recorded_total")
	if err != nil {
		return nil, err
	}
	duplicateSales, err := meter.Int64Counter("ledger_duplicate_sales_total")
	if err != nil {
		return nil, err
	}
	credits, err := meter.Int64Counter("ledger_credits_total")
	if err != nil {
		return nil, err
	}
	fraudFlags, err := meter.Int64Counter("ledger_fraud_flags_total")
	if err != nil {
		return nil, err
	}
	rateFallbacks, err := meter.Int64Counter("ledger_rate_fallbacks_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents:  webhookEvents,
		salesRecorded:  salesRecorded,
		duplicateSales: duplicateSales,
		credits:        credits,
		fraudFlags:     fraudFlags,
		rateFallbacks:  rateFallbacks,
	}, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordSale(ctx context.Context, attributed bool) {
	if m == nil {
		return
	}
	m.salesRecorded.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("attributed", attributed),
	))
}

func (m *Metrics) RecordDuplicateSale(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicateSales.Add(ctx, 1)
}

func (m *Metrics) RecordCredit(ctx context.Context, amountCents int64) {
	if m == nil {
		return
	}
	m.credits.Add(ctx, amountCents)
}

func (m *Metrics) RecordFraudFlag(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.fraudFlags.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordRateFallback(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.rateFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
