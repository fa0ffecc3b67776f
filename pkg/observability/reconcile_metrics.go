package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricReconcileCreatedTotal   = "weavequality.reconcile.created.total"
	metricReconcileSkippedTotal   = "weavequality.reconcile.skipped.total"
	metricReconcileDuplicateTotal = "weavequality.reconcile.duplicate.total"
)

// ReconcileStats is the subset of reconcile.Stats this package records,
// decoupled so observability never imports pkg/reconcile back.
type ReconcileStats struct {
	CreatedRemote int
	CreatedNodes  int
	Skipped       int
	Duplicates    int
}

// ReconcileMetrics holds OTel instruments for one reconciliation run.
type ReconcileMetrics struct {
	created   metric.Int64Counter
	skipped   metric.Int64Counter
	duplicate metric.Int64Counter
}

// NewReconcileMetrics creates reconciliation metric instruments from the given meter.
func NewReconcileMetrics(mt metric.Meter) (*ReconcileMetrics, error) {
	created, err := mt.Int64Counter(metricReconcileCreatedTotal,
		metric.WithDescription("Remote issues and graph nodes created by reconciliation"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReconcileCreatedTotal, err)
	}

	skipped, err := mt.Int64Counter(metricReconcileSkippedTotal,
		metric.WithDescription("Nodes skipped during reconciliation"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReconcileSkippedTotal, err)
	}

	duplicate, err := mt.Int64Counter(metricReconcileDuplicateTotal,
		metric.WithDescription("Duplicate remote_issue_id mappings detected"),
		metric.WithUnit("{mapping}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReconcileDuplicateTotal, err)
	}

	return &ReconcileMetrics{created: created, skipped: skipped, duplicate: duplicate}, nil
}

// RecordRun records the outcome of one completed reconciliation run.
// Safe to call on a nil receiver (no-op).
func (rm *ReconcileMetrics) RecordRun(ctx context.Context, stats ReconcileStats) {
	if rm == nil {
		return
	}

	rm.created.Add(ctx, int64(stats.CreatedRemote+stats.CreatedNodes))
	rm.skipped.Add(ctx, int64(stats.Skipped))
	rm.duplicate.Add(ctx, int64(stats.Duplicates))
}
