package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope every span in this module is
// recorded under.
const TracerName = "orderflow-core"

// Tracer returns the process-wide tracer. Span export wiring (OTLP
// exporter, sampler, resource attributes) is left to the operator's
// collector configuration; this module only opens spans against whatever
// TracerProvider otel.SetTracerProvider installed, defaulting to a no-op
// provider when none was configured.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
