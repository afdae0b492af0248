// Package telemetry provides OpenTelemetry metrics for the resource
// management components.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const (
	meterName = "github.com/odalton/resourcekit"
)

// MetricsConfig configures the metrics system.
type MetricsConfig struct {
	// ServiceName is the name of the service for resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, OTLP export is disabled.
	OTLPEndpoint string

	// EnablePrometheus enables the Prometheus /metrics endpoint.
	EnablePrometheus bool

	// FlushInterval is how often to export metrics (default: 10s).
	FlushInterval time.Duration
}

// Metrics holds the OpenTelemetry metric instruments.
type Metrics struct {
	poolAcquiresTotal     metric.Int64Counter
	poolConnsCreatedTotal metric.Int64Counter
	poolInUse             metric.Int64Gauge
	connOpsTotal          metric.Int64Counter
	connOpDuration        metric.Float64Histogram

	cacheLookupsTotal   metric.Int64Counter
	cacheEvictionsTotal metric.Int64Counter
	cacheSweepDuration  metric.Float64Histogram
	cacheEntries        metric.Int64Gauge

	limiterDecisionsTotal metric.Int64Counter
	limiterOccupancy      metric.Int64Gauge

	tasksScheduledTotal metric.Int64Counter
	taskRunsTotal       metric.Int64Counter
	taskRunDuration     metric.Float64Histogram
	queueDepth          metric.Int64Gauge

	meterProvider *sdkmetric.MeterProvider
	promHandler   http.Handler
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
	initErr       error
)

// InitMetrics initializes the OpenTelemetry metrics system.
// Returns a shutdown function that should be called on application exit.
// Uses sync.Once to ensure single initialisation.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (shutdown func(context.Context) error, err error) {
	initOnce.Do(func() {
		initErr = doInitMetrics(ctx, cfg)
	})

	if initErr != nil {
		return nil, initErr
	}

	return shutdownMetrics, nil
}

func doInitMetrics(ctx context.Context, cfg MetricsConfig) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "resourcekit"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	// Build resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return err
	}

	var readers []sdkmetric.Reader
	var promHandler http.Handler

	// Setup OTLP exporter if endpoint configured
	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(), // Use WithTLSCredentials for production
		)
		if err != nil {
			return err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	// Setup Prometheus exporter if enabled
	if cfg.EnablePrometheus {
		promExp, err := promexporter.New()
		if err != nil {
			return err
		}
		readers = append(readers, promExp)
		promHandler = promhttp.Handler()
	}

	// If no exporters configured, use a no-op periodic reader to still collect metrics
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewPeriodicReader(noopExporter{},
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	// Build meter provider options
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	// Create meter and instruments
	meter := mp.Meter(meterName)

	poolAcquiresTotal, err := meter.Int64Counter(
		"resourcekit_pool_acquires_total",
		metric.WithDescription("Total number of pool acquire attempts by outcome"),
		metric.WithUnit("{acquire}"),
	)
	if err != nil {
		return err
	}

	poolConnsCreatedTotal, err := meter.Int64Counter(
		"resourcekit_pool_connections_created_total",
		metric.WithDescription("Total number of connections created by the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	poolInUse, err := meter.Int64Gauge(
		"resourcekit_pool_connections_in_use",
		metric.WithDescription("Number of connections currently checked out"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	connOpsTotal, err := meter.Int64Counter(
		"resourcekit_connection_operations_total",
		metric.WithDescription("Total number of query/execute operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	connOpDuration, err := meter.Float64Histogram(
		"resourcekit_connection_operation_duration_seconds",
		metric.WithDescription("Duration of query/execute operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return err
	}

	cacheLookupsTotal, err := meter.Int64Counter(
		"resourcekit_cache_lookups_total",
		metric.WithDescription("Total number of cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	cacheEvictionsTotal, err := meter.Int64Counter(
		"resourcekit_cache_evictions_total",
		metric.WithDescription("Total number of expired entries removed by sweeps"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	cacheSweepDuration, err := meter.Float64Histogram(
		"resourcekit_cache_sweep_duration_seconds",
		metric.WithDescription("Duration of cache eviction sweeps"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.01, 0.1, 1),
	)
	if err != nil {
		return err
	}

	cacheEntries, err := meter.Int64Gauge(
		"resourcekit_cache_entries",
		metric.WithDescription("Number of entries in the cache after the last sweep"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	limiterDecisionsTotal, err := meter.Int64Counter(
		"resourcekit_limiter_decisions_total",
		metric.WithDescription("Total number of admission decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return err
	}

	limiterOccupancy, err := meter.Int64Gauge(
		"resourcekit_limiter_window_occupancy",
		metric.WithDescription("Number of admitted timestamps retained in the window"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	tasksScheduledTotal, err := meter.Int64Counter(
		"resourcekit_tasks_scheduled_total",
		metric.WithDescription("Total number of tasks registered by kind and priority"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	taskRunsTotal, err := meter.Int64Counter(
		"resourcekit_task_runs_total",
		metric.WithDescription("Total number of task work invocations by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	taskRunDuration, err := meter.Float64Histogram(
		"resourcekit_task_run_duration_seconds",
		metric.WithDescription("Duration of task work invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return err
	}

	queueDepth, err := meter.Int64Gauge(
		"resourcekit_task_queue_depth",
		metric.WithDescription("Number of tasks buffered in the task queue"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	globalMetrics = &Metrics{
		poolAcquiresTotal:     poolAcquiresTotal,
		poolConnsCreatedTotal: poolConnsCreatedTotal,
		poolInUse:             poolInUse,
		connOpsTotal:          connOpsTotal,
		connOpDuration:        connOpDuration,

		cacheLookupsTotal:   cacheLookupsTotal,
		cacheEvictionsTotal: cacheEvictionsTotal,
		cacheSweepDuration:  cacheSweepDuration,
		cacheEntries:        cacheEntries,

		limiterDecisionsTotal: limiterDecisionsTotal,
		limiterOccupancy:      limiterOccupancy,

		tasksScheduledTotal: tasksScheduledTotal,
		taskRunsTotal:       taskRunsTotal,
		taskRunDuration:     taskRunDuration,
		queueDepth:          queueDepth,

		meterProvider: mp,
		promHandler:   promHandler,
	}

	return nil
}

// shutdownMetrics shuts down the metrics provider and clears the global state.
func shutdownMetrics(ctx context.Context) error {
	if globalMetrics == nil {
		return nil
	}
	err := globalMetrics.meterProvider.Shutdown(ctx)
	globalMetrics = nil
	return err
}

// RecordPoolAcquire records an acquire attempt.
// outcome is "reused", "created", "exhausted" or "closed".
func RecordPoolAcquire(ctx context.Context, outcome string) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.poolAcquiresTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == "created" {
		globalMetrics.poolConnsCreatedTotal.Add(ctx, 1)
	}
}

// UpdatePoolInUse records the number of connections currently checked out.
func UpdatePoolInUse(ctx context.Context, inUse int) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.poolInUse.Record(ctx, int64(inUse))
}

// RecordConnOp records a query/execute operation on a connection.
// op is "query" or "execute"; outcome is "ok" or "error".
func RecordConnOp(ctx context.Context, op, outcome string, duration time.Duration) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	globalMetrics.connOpsTotal.Add(ctx, 1, attrs)
	globalMetrics.connOpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheLookup records a cache lookup result.
func RecordCacheLookup(ctx context.Context, hit bool) {
	if globalMetrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	globalMetrics.cacheLookupsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)))
}

// RecordCacheSweep records one eviction sweep's removed count, remaining
// entries and duration. Called unconditionally per sweep.
func RecordCacheSweep(ctx context.Context, removed, remaining int, duration time.Duration) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.cacheEvictionsTotal.Add(ctx, int64(removed))
	globalMetrics.cacheSweepDuration.Record(ctx, duration.Seconds())
	globalMetrics.cacheEntries.Record(ctx, int64(remaining))
}

// RecordLimiterDecision records an admission decision and the resulting
// window occupancy.
func RecordLimiterDecision(ctx context.Context, allowed bool, occupancy int) {
	if globalMetrics == nil {
		return
	}
	outcome := "rejected"
	if allowed {
		outcome = "allowed"
	}
	globalMetrics.limiterDecisionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
	globalMetrics.limiterOccupancy.Record(ctx, int64(occupancy))
}

// RecordTaskScheduled records a task registration.
// kind is "periodic" or "once".
func RecordTaskScheduled(ctx context.Context, kind, priority string) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.tasksScheduledTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("priority", priority),
	))
}

// RecordTaskRun records one work invocation.
// outcome is "ok" or "error".
func RecordTaskRun(ctx context.Context, outcome string, duration time.Duration) {
	if globalMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	globalMetrics.taskRunsTotal.Add(ctx, 1, attrs)
	globalMetrics.taskRunDuration.Record(ctx, duration.Seconds(), attrs)
}

// UpdateQueueDepth records the current task queue depth.
func UpdateQueueDepth(ctx context.Context, depth int) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.queueDepth.Record(ctx, int64(depth))
}

// PrometheusHandler returns the Prometheus metrics HTTP handler.
// Returns a handler that returns 404 if Prometheus export is not enabled,
// allowing safe registration regardless of initialization order.
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if globalMetrics == nil || globalMetrics.promHandler == nil {
			http.NotFound(w, r)
			return
		}
		globalMetrics.promHandler.ServeHTTP(w, r)
	})
}

// noopExporter is a no-op metrics exporter for when no exporters are configured.
type noopExporter struct{}

func (noopExporter) Temporality(_ sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopExporter) Aggregation(_ sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return nil
}

func (noopExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error {
	return nil
}

func (noopExporter) ForceFlush(_ context.Context) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
