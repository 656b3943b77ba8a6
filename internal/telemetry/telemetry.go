// Package telemetry provides OpenTelemetry tracing for walks, exported to
// Honeycomb over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName    = "tilespawner"
	serviceVersion = "0.2.0"

	honeycombEndpoint = "https://api.honeycomb.io"
	defaultDataset    = "tilespawner"

	envEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envHeaders     = "OTEL_EXPORTER_OTLP_HEADERS"
	envSDKDisabled = "OTEL_SDK_DISABLED"
	envSampleRatio = "TILESPAWNER_TRACE_RATIO"
)

// ErrDisabled is returned by Setup when there is nowhere to send traces.
// Tracers keep working and produce no-op spans.
var ErrDisabled = errors.New("telemetry: disabled")

// Options tune the tracer provider.
type Options struct {
	// Command is recorded on every span's resource (play, serve, ...).
	Command string
	// SampleRatio is the fraction of root traces kept. Zero keeps all.
	SampleRatio float64
}

// OptionsFromEnv reads the sample ratio from TILESPAWNER_TRACE_RATIO.
func OptionsFromEnv(command string) (Options, error) {
	opts := Options{Command: command}
	if v := os.Getenv(envSampleRatio); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return opts, fmt.Errorf("%s must be between 0 and 1, got %q", envSampleRatio, v)
		}
		opts.SampleRatio = ratio
	}
	return opts, nil
}

// Setup installs a global tracer provider exporting over OTLP/HTTP. The
// exporter reads the standard OTEL_* variables (see ConfigureHoneycomb).
// Without credentials for Honeycomb, or with OTEL_SDK_DISABLED=true, it
// returns ErrDisabled and leaves the no-op provider in place.
//
// The returned shutdown flushes pending spans and must be called on exit.
func Setup(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	if !exportConfigured() {
		return nil, ErrDisabled
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	// Own resource rather than merging with Default() to avoid schema URL conflicts
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
			attribute.String("tilespawner.command", opts.Command),
			attribute.String("host.name", getHostname()),
			attribute.String("os.type", runtime.GOOS),
			attribute.String("process.runtime.version", runtime.Version()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// sampler keeps every trace unless a ratio in (0, 1) is given. Child spans
// follow their parent so a sampled walk keeps all its steps.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// exportConfigured reports whether spans have somewhere to go.
func exportConfigured() bool {
	if disabled, _ := strconv.ParseBool(os.Getenv(envSDKDisabled)); disabled {
		return false
	}
	endpoint := os.Getenv(envEndpoint)
	if endpoint == honeycombEndpoint {
		return os.Getenv(envHeaders) != ""
	}
	return endpoint != ""
}

// ConfigureHoneycomb points the OTEL_* environment variables at Honeycomb.
// Headers are only set when apiKey is non-empty; an empty dataset falls back
// to the service name.
func ConfigureHoneycomb(apiKey, dataset string) {
	os.Setenv(envEndpoint, honeycombEndpoint)

	if dataset == "" {
		dataset = defaultDataset
	}
	if apiKey != "" {
		os.Setenv(envHeaders,
			fmt.Sprintf("x-honeycomb-team=%s,x-honeycomb-dataset=%s", apiKey, dataset))
	}
}

// Tracer returns a named tracer for the given component.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(serviceName + "/" + name)
}

// NoopTracer returns a no-op tracer for use when telemetry is disabled.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(serviceName + "/noop")
}

// getHostname returns the system hostname, or "unknown" if it cannot be determined.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
