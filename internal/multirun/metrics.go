package multirun

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meter reports group-level counters so an operator watching OTel metrics
// sees run throughput and failure rate without parsing every run's JSONL
// ledger, grounded on runtime/agent/telemetry/clue.go's ClueMetrics
// wrapper over the global MeterProvider.
var meter = otel.Meter("github.com/detcore/detcore/internal/multirun")

// recordGroupMetrics reports one Execute call's outcome. Errors obtaining an
// instrument are ignored: metrics are observability, never load-bearing, so
// a missing MeterProvider must not affect Execute's result.
func recordGroupMetrics(groupID, mode string, n, failures int) {
	attrs := metric.WithAttributes(
		attribute.String("group_id", groupID),
		attribute.String("mode", mode),
	)
	if counter, err := meter.Int64Counter("detcore.multirun.children_total"); err == nil {
		counter.Add(context.Background(), int64(n), attrs)
	}
	if counter, err := meter.Int64Counter("detcore.multirun.children_failed"); err == nil {
		counter.Add(context.Background(), int64(failures), attrs)
	}
}
