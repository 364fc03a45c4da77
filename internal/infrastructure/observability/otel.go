package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kceleski/agent-healthproassist-sub000"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	SearchCount        metric.Int64Counter
	SearchDuration     metric.Float64Histogram
	SourceDuration     metric.Float64Histogram
	SourceFailureCount metric.Int64Counter
	DroppedRecordCount metric.Int64Counter
	GeocodeCacheHits   metric.Int64Counter
	GeocodeCacheMisses metric.Int64Counter
}

// Setup initializes OpenTelemetry trace and metric pipelines
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
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

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	shutdown := func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

// NewMetrics creates the instrument set on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.RequestCount, err = meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.SearchCount, err = meter.Int64Counter(
		"facility.search.count",
		metric.WithDescription("Number of finished facility searches by outcome"),
	); err != nil {
		return nil, err
	}
	if m.SearchDuration, err = meter.Float64Histogram(
		"facility.search.duration",
		metric.WithDescription("Facility search duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.SourceDuration, err = meter.Float64Histogram(
		"facility.source.duration",
		metric.WithDescription("Facility source fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.SourceFailureCount, err = meter.Int64Counter(
		"facility.source.failure.count",
		metric.WithDescription("Number of failed facility source fetches by kind"),
	); err != nil {
		return nil, err
	}
	if m.DroppedRecordCount, err = meter.Int64Counter(
		"facility.normalize.dropped.count",
		metric.WithDescription("Number of raw records dropped by normalization"),
	); err != nil {
		return nil, err
	}
	if m.GeocodeCacheHits, err = meter.Int64Counter(
		"geocode.cache.hit.count",
		metric.WithDescription("Number of geocode cache hits"),
	); err != nil {
		return nil, err
	}
	if m.GeocodeCacheMisses, err = meter.Int64Counter(
		"geocode.cache.miss.count",
		metric.WithDescription("Number of geocode cache misses"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
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

// RecordSearch records a finished search
func RecordSearch(ctx context.Context, metrics *Metrics, outcome string, partial bool, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("search.outcome", outcome),
		attribute.Bool("search.partial_failure", partial),
	)
	metrics.SearchCount.Add(ctx, 1, attrs)
	metrics.SearchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordSourceFetch records one adapter call; errorKind is empty on success
func RecordSourceFetch(ctx context.Context, metrics *Metrics, source, errorKind string, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source.name", source))
	metrics.SourceDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if errorKind != "" {
		metrics.SourceFailureCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source.name", source),
			attribute.String("error.kind", errorKind),
		))
	}
}

// RecordDroppedRecords records records the normalizer rejected
func RecordDroppedRecords(ctx context.Context, metrics *Metrics, source string, n int) {
	if metrics == nil || n == 0 {
		return
	}
	metrics.DroppedRecordCount.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source.name", source)))
}

// RecordGeocodeCache records a geocode cache lookup
func RecordGeocodeCache(ctx context.Context, metrics *Metrics, hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.GeocodeCacheHits.Add(ctx, 1)
		return
	}
	metrics.GeocodeCacheMisses.Add(ctx, 1)
}
