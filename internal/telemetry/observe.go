package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// logAndTrace mirrors one emitted Event onto the process's ambient
// observability stack: a clue/log debug line for human operators tailing
// stderr, and an attribute-tagged span event on whatever OTel span is
// already active in ctx (a no-op span if none), so the event's place in
// the parent_step stack shows up in a trace viewer alongside the
// authoritative JSONL ledger. Both are best-effort; neither can fail Emit,
// matching the Bus's rule that subscriber/observability failures never
// affect the durable record. Grounded on runtime/agent/telemetry/clue.go's
// ClueLogger/ClueTracer wiring.
func logAndTrace(ctx context.Context, e Event) {
	fields := []log.Fielder{
		log.KV{K: "run_id", V: e.RunID},
		log.KV{K: "step", V: e.Step},
		log.KV{K: "event_type", V: string(e.Type)},
	}
	if e.EdgeKind != "" {
		fields = append(fields, log.KV{K: "edge_kind", V: string(e.EdgeKind)})
	}
	if e.ToolOrModelName != "" {
		fields = append(fields, log.KV{K: "name", V: e.ToolOrModelName})
	}
	log.Debug(ctx, fields...)

	attrs := []attribute.KeyValue{
		attribute.Int64("detcore.step", e.Step),
		attribute.String("detcore.event_type", string(e.Type)),
	}
	if e.ParentStep != nil {
		attrs = append(attrs, attribute.Int64("detcore.parent_step", *e.ParentStep))
	}
	if e.EdgeKind != "" {
		attrs = append(attrs, attribute.String("detcore.edge_kind", string(e.EdgeKind)))
	}
	trace.SpanFromContext(ctx).AddEvent("detcore."+string(e.Type), trace.WithAttributes(attrs...))
}
