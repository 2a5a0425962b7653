package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("room_key", "room-1"),
		attribute.String("phone", "+62811"),
		attribute.String("channel", "whatsapp"),
		attribute.String("outcome", "inserted"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "channel" || attrs[1].Key != "outcome" {
		t.Fatalf("unexpected retained attributes: %v", attrs)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordWebhookIngest(context.Background(), "whatsapp")
	m.RecordRawStoreFailure(context.Background(), "put")
	m.RecordMessageStored(context.Background(), "whatsapp", "inserted")
	m.RecordFunnelRecord(context.Background(), "whatsapp")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "sparks"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordWebhookIngest(context.Background(), "telegram")
}
