// Package otel wires OpenTelemetry tracing for game processes.
package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/delving.space/internal/platform/config"
)

// InstrumentationPrefix namespaces every tracer created by Tracer.
const InstrumentationPrefix = "github.com/louisbranch/delving.space/"

// Settings controls trace export. Tracing stays off until an endpoint is set.
type Settings struct {
	Endpoint    string  `env:"DELVING_SPACE_OTEL_ENDPOINT"`
	Enabled     bool    `env:"DELVING_SPACE_OTEL_ENABLED" envDefault:"true"`
	// SampleRatio below 1 switches to parent-based ratio sampling.
	SampleRatio float64 `env:"DELVING_SPACE_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether spans should be exported.
func (s Settings) Active() bool {
	return s.Enabled && strings.TrimSpace(s.Endpoint) != ""
}

// Setup reads Settings from the environment and registers a global tracer
// provider for serviceName when tracing is active. The returned shutdown
// flushes pending spans; it is a no-op when tracing is off.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	var s Settings
	if err := config.ParseEnv(&s); err != nil {
		return nil, fmt.Errorf("telemetry settings: %w", err)
	}
	return setup(ctx, serviceName, s)
}

func setup(ctx context.Context, serviceName string, s Settings) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !s.Active() {
		return noop, nil
	}
	if s.SampleRatio < 0 || s.SampleRatio > 1 {
		return noop, fmt.Errorf("sample ratio %v outside [0, 1]", s.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(s.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Tracer returns a tracer scoped under the module instrumentation prefix.
// Spans are no-ops until Setup registers a provider.
func Tracer(scope string) trace.Tracer {
	return otel.Tracer(InstrumentationPrefix + strings.TrimPrefix(scope, "/"))
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
