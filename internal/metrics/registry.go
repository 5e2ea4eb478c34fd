package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the workflow metrics of the service.
type Registry struct {
	meter metric.Meter

	// Workflow
	TransitionCounter        metric.Int64Counter
	SelectionEvaluations     metric.Int64Counter
	ReportGenerationDuration metric.Float64Histogram
	ReportReviewCounter      metric.Int64Counter
	AggregateScore           metric.Float64Histogram
	OpenEvaluations          metric.Int64ObservableGauge

	// System
	DatabaseConnectionPool metric.Int64ObservableGauge
	CacheLookups           metric.Int64Counter

	mu              sync.RWMutex
	openEvaluations int64
	dbPoolSize      int64
}

// NewRegistry creates a registry on the global meter provider.
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates a registry on meter.
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	if err := r.initWorkflowMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initWorkflowMetrics() error {
	var err error

	r.TransitionCounter, err = r.meter.Int64Counter(
		"eval.workflow.transition_total",
		metric.WithDescription("Workflow status transitions by entity and target status"),
	)
	if err != nil {
		return err
	}

	r.SelectionEvaluations, err = r.meter.Int64Counter(
		"eval.selection.evaluated_total",
		metric.WithDescription("Class selections evaluated, by verdict"),
	)
	if err != nil {
		return err
	}

	r.ReportGenerationDuration, err = r.meter.Float64Histogram(
		"eval.report.generation_duration",
		metric.WithDescription("Technical report generation time in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return err
	}

	r.ReportReviewCounter, err = r.meter.Int64Counter(
		"eval.report.review_total",
		metric.WithDescription("Supervisor report decisions"),
	)
	if err != nil {
		return err
	}

	r.AggregateScore, err = r.meter.Float64Histogram(
		"eval.evaluation.aggregate_score",
		metric.WithDescription("Aggregate score of completed evaluations"),
		metric.WithExplicitBucketBoundaries(20, 40, 60, 70, 80, 90, 100),
	)
	if err != nil {
		return err
	}

	r.OpenEvaluations, err = r.meter.Int64ObservableGauge(
		"eval.evaluation.open_total",
		metric.WithDescription("Evaluations started and not yet completed by this instance"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.openEvaluations)
			return nil
		}),
	)
	return err
}

func (r *Registry) initSystemMetrics() error {
	var err error

	r.DatabaseConnectionPool, err = r.meter.Int64ObservableGauge(
		"eval.system.db_connection_pool_size",
		metric.WithDescription("Current database connection pool size"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.dbPoolSize)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.CacheLookups, err = r.meter.Int64Counter(
		"eval.system.cache_lookup_total",
		metric.WithDescription("Cache lookups by outcome"),
	)
	return err
}

// SetDBPoolSize sets the database connection pool size
func (r *Registry) SetDBPoolSize(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbPoolSize = size
}

// RecordTransition counts a status change of a workflow entity.
func (r *Registry) RecordTransition(ctx context.Context, entity, status string) {
	if r == nil {
		return
	}
	r.TransitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("status", status),
	))
}

func (r *Registry) EvaluationStarted(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.openEvaluations++
	r.mu.Unlock()
	r.RecordTransition(ctx, "evaluation", "IN_PROGRESS")
}

// EvaluationCompleted records the completion and its aggregate score, if any.
func (r *Registry) EvaluationCompleted(ctx context.Context, score *float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.openEvaluations > 0 {
		r.openEvaluations--
	}
	r.mu.Unlock()
	r.RecordTransition(ctx, "evaluation", "COMPLETED")
	if score != nil {
		r.AggregateScore.Record(ctx, *score)
	}
}

func (r *Registry) RecordSelectionEvaluated(ctx context.Context, verdict string) {
	if r == nil {
		return
	}
	r.SelectionEvaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// RecordReportGeneration records how long a generation attempt took.
func (r *Registry) RecordReportGeneration(ctx context.Context, durationMS float64, success bool) {
	if r == nil {
		return
	}
	r.ReportGenerationDuration.Record(ctx, durationMS, metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		r.RecordTransition(ctx, "report", "generated")
	}
}

func (r *Registry) RecordReview(ctx context.Context, decision string) {
	if r == nil {
		return
	}
	r.ReportReviewCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordCacheLookup counts a cache hit or miss for cache.
func (r *Registry) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	if r == nil {
		return
	}
	r.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.Bool("hit", hit),
	))
}
