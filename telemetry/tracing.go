package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// TracingOptions configures span export.
type TracingOptions struct {
	Service string
	Version string
	// Endpoint is the OTLP/gRPC collector, as host:port or a URL. Empty
	// leaves the global no-op tracer in place.
	Endpoint string
	// SampleRatio applies to root spans; child spans follow their parent.
	SampleRatio float64
}

var tracingEnabled atomic.Bool

// TracingEnabled reports whether spans are being exported.
func TracingEnabled() bool { return tracingEnabled.Load() }

// InitTracing installs an OTLP exporting tracer provider. The returned
// function flushes pending spans and must be called before exit.
func InitTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	hostport, insecure, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	exportOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(hostport)}
	if insecure {
		exportOpts = append(exportOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exportOpts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(opts.Service),
		semconv.ServiceVersion(opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	tracingEnabled.Store(true)
	slog.Info("tracing enabled", slog.String("endpoint", hostport), slog.Float64("sample_ratio", opts.SampleRatio))

	return func(ctx context.Context) error {
		tracingEnabled.Store(false)
		return tp.Shutdown(ctx)
	}, nil
}

// parseEndpoint accepts host:port (plaintext, as for a local collector) or an
// http/https URL.
func parseEndpoint(endpoint string) (hostport string, insecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q", endpoint)
	}
	switch u.Scheme {
	case "http":
		return u.Host, true, nil
	case "https":
		return u.Host, false, nil
	}
	return "", false, fmt.Errorf("invalid OTLP endpoint %q: scheme must be http or https", endpoint)
}
