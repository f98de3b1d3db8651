package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestMessageHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := MessageHeaders(ctx)
	want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if got := headers["traceparent"]; got != want {
		t.Errorf("traceparent = %v, want %s", got, want)
	}

	got := trace.SpanContextFromContext(ExtractHeaders(context.Background(), headers))
	if got.TraceID() != traceID || got.SpanID() != spanID {
		t.Errorf("extracted span context = %v", got)
	}
}

func TestMessageHeadersWithoutSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	if h := MessageHeaders(context.Background()); len(h) != 0 {
		t.Errorf("MessageHeaders() = %v, want empty", h)
	}
}
