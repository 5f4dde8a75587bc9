// Package tracing brackets a mount's lifetime in a single exported
// span, the same granularity cmd/mount.go's context.Context threads
// through fs.NewServer and fuse.Mount before anything FUSE-op-shaped
// happens — a per-FUSE-op span would outrun any exporter, so tracing
// here covers the mount/unmount boundary, not the hot path.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Init installs a TracerProvider that writes completed spans to
// stdout as pretty-printed JSON, returning a shutdown func that
// flushes and detaches it. When enabled is false, Init installs a
// no-op provider instead, so callers never branch on whether tracing
// is on before calling Tracer().
func Init(ctx context.Context, enabled bool, serviceName string) (shutdown func(context.Context) error, err error) {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the mikufs tracer off whatever provider Init
// installed.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/altushkaso/mikufs")
}
