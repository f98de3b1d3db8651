package otel

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PublishSpan starts a producer span for a task event.
func PublishSpan(ctx context.Context, exchange, routingKey string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", exchange),
			attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
		),
	)
}

// MessageHeaders returns AMQP headers carrying the current traceparent.
func MessageHeaders(ctx context.Context) amqp091.Table {
	h := tableCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, h)
	return amqp091.Table(h)
}

// ExtractHeaders restores the producer's span context from message headers.
func ExtractHeaders(ctx context.Context, headers amqp091.Table) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, tableCarrier(headers))
}

type tableCarrier amqp091.Table

func (c tableCarrier) Get(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c tableCarrier) Set(key, value string) { c[key] = value }

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
