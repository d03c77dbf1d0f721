package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "req-1")
	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "req-1", cid)

	_, generated := EnsureCorrelationID(context.Background())
	assert.Len(t, generated, 26)
}

func TestDetachRoundTripsSpan(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithCorrelationID(ctx, "req-2")

	carrier := Detach(ctx)
	assert.Equal(t, "req-2", carrier.CorrelationID)
	assert.Equal(t, traceID.String(), carrier.TraceID)

	restored := carrier.Context()
	assert.Equal(t, "req-2", ExtractCorrelationID(restored))
	got := trace.SpanContextFromContext(restored)
	assert.True(t, got.IsRemote())
	assert.Equal(t, spanID, got.SpanID())
}

func TestDetachWithoutSpan(t *testing.T) {
	carrier := Detach(context.Background())
	assert.NotEmpty(t, carrier.CorrelationID)
	assert.Empty(t, carrier.TraceID)
	assert.False(t, trace.SpanContextFromContext(carrier.Context()).IsValid())
}
