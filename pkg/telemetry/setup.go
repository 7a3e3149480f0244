package telemetry

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	Exporter    string
	Endpoint    string
	Insecure    bool
	ServiceName string
	// Writer receives stdout spans; os.Stdout when nil.
	Writer io.Writer
}

/*
Setup installs a global tracer provider for the configured exporter and the
W3C propagators. The returned shutdown flushes pending spans. With the none
exporter nothing is installed and the global no-op provider stays in place.
*/
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return noop, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "mem0-go"
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return noop, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Debug("tracing enabled", "exporter", cfg.Exporter, "service", cfg.ServiceName)

	return func(ctx context.Context) error {
		return errors.NewError(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		writer := cfg.Writer

		if writer == nil {
			writer = os.Stdout
		}

		return stdouttrace.New(stdouttrace.WithWriter(writer))
	case ExporterOTLP:
		var opts []otlptracehttp.Option

		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}

		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}

		return otlptracehttp.New(ctx, opts...)
	}

	return nil, errors.NewConfigurationError("telemetry.exporter", "unknown exporter "+cfg.Exporter)
}
