// Package observability provides OpenTelemetry integration for distributed tracing.
//
// kiosk emits exactly one trace per processed utterance: a root span for the
// pipeline with child spans for classification, planning, each tool call, and
// composition. Export is best-effort over OTLP/HTTP to a local collector or
// agent; a collector outage degrades to disabled tracing and never blocks
// query processing.
//
// # Configuration
//
// Config file (~/.kiosk/config.yaml):
//
//	observability:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "kiosk"
//
// Environment overrides: KIOSK_TRACING_ENABLED, KIOSK_OTLP_ENDPOINT.
//
// # Verify the pipeline
//
//	curl -v http://localhost:4318/v1/traces
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config for OTLP trace export.
type Config struct {
	// Enabled turns trace export on. When false, Setup is a no-op.
	Enabled bool
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name reported on spans
	ServiceName string
}

// DefaultEndpoint is the default OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup registers an OTLP exporter with Genkit's TracerProvider, which all
// kiosk spans are created against.
//
// Returns a shutdown function that flushes pending spans. Exporter
// construction failure logs a warning and disables tracing; it never fails
// startup.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled {
		slog.Debug("tracing disabled by configuration")
		return noop, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Set OTEL_SERVICE_NAME for Genkit's TracerProvider to pick up
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost collector doesn't need TLS
	)
	if err != nil {
		slog.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}

// Tracer returns a named tracer from the provider kiosk exports through.
// Components use this instead of the otel global so their spans share the
// provider Genkit instruments.
func Tracer(name string) trace.Tracer {
	return tracing.TracerProvider().Tracer(name)
}
