package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"taskboard/pkg/config"
)

const (
	defaultCollector = "localhost:4317"
	exportTimeout    = 5 * time.Second
)

var tracer trace.Tracer = noop.NewTracerProvider().Tracer("taskboard")

// Provider owns the SDK tracer provider. A disabled Provider is a no-op.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger *zap.Logger
}

// Init installs the W3C propagator and, when enabled, an OTLP exporter.
func Init(cfg config.OTelConfig, version string, logger *zap.Logger) (*Provider, error) {
	// inbound traceparent is honoured even with export off
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p := &Provider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Tracing export disabled")
		return p, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultCollector
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	)

	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", endpoint, err)
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(p.tp)
	tracer = p.tp.Tracer(cfg.ServiceName)

	logger.Info("Tracing export enabled",
		zap.String("service", cfg.ServiceName),
		zap.String("collector", endpoint),
		zap.Float64("sample_ratio", ratio),
	)
	return p, nil
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown() {
	if p == nil || p.tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		p.logger.Warn("Tracer provider shutdown", zap.Error(err))
	}
}

// Tracer returns the process tracer; no-op until Init enables export.
func Tracer() trace.Tracer {
	return tracer
}
