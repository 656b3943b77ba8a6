package telemetry

import (
	"context"
	"errors"
	"os"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestConfigureHoneycomb(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	ConfigureHoneycomb("key123", "")

	if got := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); got != honeycombEndpoint {
		t.Errorf("endpoint = %q, want %q", got, honeycombEndpoint)
	}
	want := "x-honeycomb-team=key123,x-honeycomb-dataset=tilespawner"
	if got := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); got != want {
		t.Errorf("headers = %q, want %q", got, want)
	}
}

func TestConfigureHoneycombWithoutKey(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	ConfigureHoneycomb("", "custom")

	if got := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); got != "" {
		t.Errorf("headers = %q, want empty without an api key", got)
	}
}

func TestNoopTracer(t *testing.T) {
	_, span := NoopTracer().Start(context.Background(), "test")
	defer span.End()

	if span.IsRecording() {
		t.Error("noop span should not record")
	}
}

func TestSetupDisabledWithoutCredentials(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		headers  string
		disabled string
	}{
		{"honeycomb without key", honeycombEndpoint, "", ""},
		{"no endpoint", "", "", ""},
		{"sdk disabled", "http://localhost:4318", "", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envEndpoint, tt.endpoint)
			t.Setenv(envHeaders, tt.headers)
			t.Setenv(envSDKDisabled, tt.disabled)

			if _, err := Setup(context.Background(), Options{Command: "test"}); !errors.Is(err, ErrDisabled) {
				t.Errorf("Setup() error = %v, want ErrDisabled", err)
			}
		})
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(envSampleRatio, "0.25")
	opts, err := OptionsFromEnv("serve")
	if err != nil {
		t.Fatalf("OptionsFromEnv() error = %v", err)
	}
	if opts.Command != "serve" || opts.SampleRatio != 0.25 {
		t.Errorf("OptionsFromEnv() = %+v", opts)
	}

	t.Setenv(envSampleRatio, "2")
	if _, err := OptionsFromEnv("serve"); err == nil {
		t.Error("OptionsFromEnv() should reject a ratio above 1")
	}
}

func TestSampler(t *testing.T) {
	if got := sampler(0).Description(); got != sdktrace.AlwaysSample().Description() {
		t.Errorf("sampler(0) = %s, want AlwaysOnSampler", got)
	}
	if got := sampler(0.5).Description(); got == sdktrace.AlwaysSample().Description() {
		t.Errorf("sampler(0.5) should sample by ratio, got %s", got)
	}
}
