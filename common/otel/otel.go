// Package otel wires OTLP/HTTP trace and log export for the feed.
package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"basegraph.app/livefeed/core/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Telemetry struct {
	shutdowns []func(context.Context) error
}

// Shutdown flushes and stops every provider Setup installed.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range t.shutdowns {
		errs = append(errs, shutdown(ctx))
	}
	return errors.Join(errs...)
}

// exporter carries what both OTLP exporters share.
type exporter struct {
	endpoint string
	headers  map[string]string
	resource *resource.Resource
}

func (e exporter) url(signal string) string {
	return strings.TrimRight(e.endpoint, "/") + "/v1/" + signal
}

// Setup installs global trace and log providers exporting over OTLP/HTTP.
// It returns nil, nil when no endpoint is configured.
func Setup(ctx context.Context, cfg config.OTelConfig) (*Telemetry, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	exp := exporter{
		endpoint: cfg.Endpoint,
		headers:  parseHeaders(cfg.Headers),
		resource: res,
	}
	tel := &Telemetry{}

	tracerProvider, err := exp.tracerProvider(ctx, cfg.SampleRatio)
	if err != nil {
		return nil, err
	}
	tel.shutdowns = append(tel.shutdowns, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	loggerProvider, err := exp.loggerProvider(ctx)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	tel.shutdowns = append(tel.shutdowns, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return tel, nil
}

// Every stream record opens a span, so busy streams are sampled by ratio.
// Child spans follow their parent's decision.
func (e exporter) tracerProvider(ctx context.Context, ratio float64) (*sdktrace.TracerProvider, error) {
	client, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(e.url("traces")),
		otlptracehttp.WithHeaders(e.headers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(client),
		sdktrace.WithResource(e.resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	), nil
}

func (e exporter) loggerProvider(ctx context.Context) (*sdklog.LoggerProvider, error) {
	client, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(e.url("logs")),
		otlploghttp.WithHeaders(e.headers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(client)),
		sdklog.WithResource(e.resource),
	), nil
}

// parseHeaders reads the OTEL_EXPORTER_OTLP_HEADERS "k1=v1,k2=v2" format.
func parseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}
