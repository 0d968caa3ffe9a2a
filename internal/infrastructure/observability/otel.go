package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/swasthya/hms-backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	EmbeddingCacheHit  metric.Int64Counter
	EmbeddingCacheMiss metric.Int64Counter
	ToolCallCount      metric.Int64Counter
	AgentRounds        metric.Int64Histogram
}

// Setup initializes OpenTelemetry tracing
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"embedding.cache.hit.count",
		metric.WithDescription("Patient embeddings served from the stored value"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"embedding.cache.miss.count",
		metric.WithDescription("Patient embeddings that had to be recomputed"),
	)
	if err != nil {
		return nil, err
	}

	toolCalls, err := meter.Int64Counter(
		"agent.tool.call.count",
		metric.WithDescription("Tool invocations requested by the chat model"),
	)
	if err != nil {
		return nil, err
	}

	rounds, err := meter.Int64Histogram(
		"agent.turn.rounds",
		metric.WithDescription("Model invocations per chat turn"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:       requestCount,
		RequestDuration:    requestDuration,
		EmbeddingCacheHit:  cacheHit,
		EmbeddingCacheMiss: cacheMiss,
		ToolCallCount:      toolCalls,
		AgentRounds:        rounds,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	)
	metrics.RequestCount.Add(ctx, 1, attrs)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordEmbeddingCache records whether a patient embedding came from the stored value
func RecordEmbeddingCache(ctx context.Context, metrics *Metrics, hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.EmbeddingCacheHit.Add(ctx, 1)
		return
	}
	metrics.EmbeddingCacheMiss.Add(ctx, 1)
}

// RecordToolCall records one dispatched tool invocation
func RecordToolCall(ctx context.Context, metrics *Metrics, tool string, failed bool) {
	if metrics == nil {
		return
	}
	metrics.ToolCallCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent.tool", tool),
		attribute.Bool("agent.tool.failed", failed),
	))
}

// RecordAgentRounds records how many model invocations a turn needed
func RecordAgentRounds(ctx context.Context, metrics *Metrics, rounds int, capped bool) {
	if metrics == nil {
		return
	}
	metrics.AgentRounds.Record(ctx, int64(rounds), metric.WithAttributes(attribute.Bool("agent.capped", capped)))
}
