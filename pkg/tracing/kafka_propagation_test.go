package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestKafkaHeaderRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	in := []kafka.Header{{
		Key:   TraceparentHeader,
		Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"),
	}}
	ctx := ExtractKafkaHeaders(context.Background(), in)

	out := InjectKafkaHeaders(ctx, nil)
	got := HeaderValue(out, TraceparentHeader)
	if got != string(in[0].Value) {
		t.Fatalf("traceparent not propagated: got %q", got)
	}
}

func TestHeaderValueMissing(t *testing.T) {
	if v := HeaderValue(nil, "nope"); v != "" {
		t.Fatalf("expected empty value, got %q", v)
	}
}
