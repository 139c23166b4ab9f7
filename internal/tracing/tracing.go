// Package tracing provides OpenTelemetry distributed tracing for the
// SOAR console.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the console tracer.
	TracerName = "github.com/logware/soar"
)

// Config holds tracing configuration.
type Config struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"` // build version, reported on spans
	Endpoint       string  `yaml:"endpoint"`        // OTLP endpoint
	SampleRate     float64 `yaml:"sample_rate"`     // 0.0 to 1.0
}

// DefaultConfig returns the default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "soard",
		Endpoint:    "http://localhost:4318", // OTLP local development default
		SampleRate:  1.0,
	}
}

// Tracer is the global tracer for the console.
var tracer trace.Tracer

func init() {
	tracer = otel.Tracer(TracerName)
}

// GetTracer returns the console tracer.
func GetTracer() trace.Tracer {
	return tracer
}

// SetTracer sets a custom tracer (useful for testing).
func SetTracer(t trace.Tracer) {
	tracer = t
}

// SpanAttributes for common console operations.
var (
	AttrExecID      = attribute.Key("soar.execution.id")
	AttrExecStatus  = attribute.Key("soar.execution.status")
	AttrSourceType  = attribute.Key("soar.source.type")
	AttrSourceName  = attribute.Key("soar.source.name")
	AttrActor       = attribute.Key("soar.actor")
	AttrCallbackURL = attribute.Key("soar.callback.url")
)

// StartIngestSpan starts a span for an execution record push.
func StartIngestSpan(ctx context.Context, execID, sourceType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "execution.ingest",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrExecID.String(execID),
			AttrSourceType.String(sourceType),
		),
	)
}

// StartAbortSpan starts a span for an abort request.
func StartAbortSpan(ctx context.Context, execID, actor string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "execution.abort",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrExecID.String(execID),
			AttrActor.String(actor),
		),
	)
}

// StartRelaySpan starts a span for an abort relay delivery.
func StartRelaySpan(ctx context.Context, execID, callbackURL string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "relay.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrExecID.String(execID),
			AttrCallbackURL.String(callbackURL),
		),
	)
}

// StartAPISpan starts a span for API request handling.
func StartAPISpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "api."+operation,
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddExecutionAttributes adds execution-related attributes to a span.
func AddExecutionAttributes(span trace.Span, execID, status string, duration time.Duration) {
	span.SetAttributes(
		AttrExecID.String(execID),
		AttrExecStatus.String(status),
		attribute.Float64("duration_seconds", duration.Seconds()),
	)
}

// Propagator returns the context propagator for distributed tracing.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// InjectTraceContext injects trace context into a carrier.
func InjectTraceContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	Propagator().Inject(ctx, carrier)
}

// ExtractTraceContext extracts trace context from a carrier.
func ExtractTraceContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return Propagator().Extract(ctx, carrier)
}

// HeaderCarrier is an adapter for HTTP headers.
type HeaderCarrier map[string]string

func (c HeaderCarrier) Get(key string) string {
	return c[key]
}

func (c HeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
