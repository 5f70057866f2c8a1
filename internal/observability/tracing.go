package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/velprakashr08-max/Frutify"

// Tracer returns the process tracer. Without an SDK installed this is the
// global no-op provider, so instrumentation costs nothing in dev.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
