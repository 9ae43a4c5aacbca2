// Package tracing opens OpenTelemetry spans for API calls and list pages.
// Spans go to the global tracer provider, which discards them until Setup
// installs an exporting one.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cgt.name/pkg/go-mwclient/v2"

// Config selects where Setup sends spans.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is an OTLP/HTTP collector (host:port). When empty, spans are
	// written as JSON to Writer.
	Endpoint string
	Writer   io.Writer
	// SampleRate is the fraction of traces kept. 1 or more keeps all.
	SampleRate float64
}

// ConfigFromEnv returns a Config for serviceName that honors
// OTEL_EXPORTER_OTLP_ENDPOINT and writes to stderr otherwise.
func ConfigFromEnv(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Writer:      os.Stderr,
		SampleRate:  1,
	}
}

// Setup installs a global tracer provider exporting per cfg and returns its
// shutdown function, which flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if cfg.Endpoint != "" {
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	} else {
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartSpan starts a span from the global provider.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// AddAPIAttributes tags a request span.
func AddAPIAttributes(span trace.Span, action, method string) {
	span.SetAttributes(
		attribute.String("mediawiki.api.action", action),
		attribute.String("http.request.method", method),
	)
}

// AddListAttributes tags a list page span; page counts from 1.
func AddListAttributes(span trace.Span, list string, page int) {
	span.SetAttributes(
		attribute.String("mediawiki.list.name", list),
		attribute.Int("mediawiki.list.page", page),
	)
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
