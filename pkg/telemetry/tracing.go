// Package telemetry configures OpenTelemetry tracing for consultation turns.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dskvich/ai-doctor/pkg/logger"
)

const (
	ServiceName = "ai-doctor"
	tracerName  = "github.com/dskvich/ai-doctor"
)

// Tracer returns the tracer used by all components. Until Setup runs it is
// backed by the no-op global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Setup installs a tracer provider that exports spans as JSON. When file is
// empty spans go to w. The returned function flushes and releases
// everything.
func Setup(ctx context.Context, version, file string, w io.Writer) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var closer io.Closer
	if file != "" {
		rotating, err := logger.NewRotatingFile(file)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		w, closer = rotating, rotating
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			err = errors.Join(err, closer.Close())
		}
		return err
	}, nil
}
