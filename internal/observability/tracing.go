// Package observability — tracing.go
//
// OpenTelemetry tracer provider for the control plant. The control loop
// runs at up to 20 Hz, so the provider samples a fraction of traces rather
// than recording every one. No span processor or exporter is registered on
// the provider, and no task in the plant starts spans.
package observability

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by the control plant.
const TracerName = "github.com/haulctl/truckctl"

// NewTracerProvider builds an SDK tracer provider sampling a fraction of
// ticks (sampleRatio in [0,1]) to bound span volume at 20 Hz.
func NewTracerProvider(sampleRatio float64) *sdktrace.TracerProvider {
	sampler := sdktrace.TraceIDRatioBased(sampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	return tp
}

// Tracer returns the package-wide tracer, installed on the given provider.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(TracerName)
}

// Shutdown flushes and releases the tracer provider's resources.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}
	return nil
}
