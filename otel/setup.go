package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petal-labs/petalapp/tool"
)

// Install wires dispatch observability end to end: a tracer provider exporting
// OTLP over HTTP to endpoint (host:port, plain HTTP), an in-process meter
// provider, and an InvokeObserver registered as the process dispatch observer.
// The returned shutdown function flushes and releases the providers.
func Install(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	observer, err := NewInvokeObserver(
		mp.Meter("petalapp"),
		tp.Tracer("petalapp"),
	)
	if err != nil {
		return nil, err
	}
	tool.SetObserver(observer)

	return func(ctx context.Context) error {
		tool.SetObserver(nil)
		mpErr := mp.Shutdown(ctx)
		tpErr := tp.Shutdown(ctx)
		if tpErr != nil {
			return tpErr
		}
		return mpErr
	}, nil
}
