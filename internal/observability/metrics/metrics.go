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

// Metrics exposes application-level OTel instruments.
type Metrics struct {
	webhookIngest    metric.Int64Counter
	rawStoreFailures metric.Int64Counter
	messagesStored   metric.Int64Counter
	funnelRecords    metric.Int64Counter
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

// New creates the OTel counters exported alongside the Prometheus pipeline
// metrics. They carry only channel-level labels.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "sparks"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	for _, spec := range []struct {
		name string
		desc string
		dst  *metric.Int64Counter
	}{
		{"sparks_webhook_ingest_total", "Webhook events queued by the gateway.", &m.webhookIngest},
		{"sparks_raw_store_failures_total", "Raw payload reads or writes that failed.", &m.rawStoreFailures},
		{"sparks_messages_stored_total", "Stream entries handled by the worker, by outcome.", &m.messagesStored},
		{"sparks_funnel_records_total", "Funnel records written by the classifier.", &m.funnelRecords},
	} {
		counter, err := meter.Int64Counter(spec.name, metric.WithDescription(spec.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", spec.name, err)
		}
		*spec.dst = counter
	}
	return m, nil
}

func (m *Metrics) add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil || counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func (m *Metrics) RecordWebhookIngest(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.add(ctx, m.webhookIngest, attribute.String("channel", strings.TrimSpace(channel)))
}

// RecordRawStoreFailure takes "put" from the gateway and "get" from the worker.
func (m *Metrics) RecordRawStoreFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.add(ctx, m.rawStoreFailures, attribute.String("operation", strings.TrimSpace(operation)))
}

func (m *Metrics) RecordMessageStored(ctx context.Context, channel, outcome string) {
	if m == nil {
		return
	}
	m.add(ctx, m.messagesStored,
		attribute.String("channel", strings.TrimSpace(channel)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
}

func (m *Metrics) RecordFunnelRecord(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.add(ctx, m.funnelRecords, attribute.String("channel", strings.TrimSpace(channel)))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"channel":     {},
	"operation":   {},
	"outcome":     {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
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
