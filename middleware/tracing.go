package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cboiteux2765/GPUTileMathService/job"
)

// tracerName is the instrumentation scope name for tilemath tracing.
const tracerName = "github.com/cboiteux2765/GPUTileMathService"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: tilemath.job.id, tilemath.job.op, the m/n/k
// shape, and tilemath.job.simulate. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, rec *job.Record, next Handler) error {
		ctx, span := tracer.Start(ctx, "tilemath.job.execute",
			trace.WithAttributes(
				attribute.String("tilemath.job.id", rec.ID.String()),
				attribute.String("tilemath.job.op", rec.Spec.Op),
				attribute.Int("tilemath.job.m", rec.Spec.M),
				attribute.Int("tilemath.job.n", rec.Spec.N),
				attribute.Int("tilemath.job.k", rec.Spec.K),
				attribute.Bool("tilemath.job.simulate", rec.Spec.Simulate),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
