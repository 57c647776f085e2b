package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/detcore/detcore/internal/canon"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/telemetry"
)

// Decorator wraps adapter I/O edges during a replayed run, the replay-side
// counterpart to recorder.Recorder.Do. It resolves each edge's
// ReplayLookupKey against the loaded Engine; on a hit it verifies the
// input's fingerprint and returns the recorded output without ever calling
// fn. On a miss, behavior depends on mode: strict is fatal, warn/hybrid
// fall through to Live, which records the live result exactly as
// recorder.Recorder would.
type Decorator struct {
	Engine *Engine
	Bus    telemetry.Bus      // the replay run's own bus; re-emits replayed events here
	Live   *recorder.Recorder // non-nil only when warn/hybrid fallthrough is possible

	mu          sync.Mutex
	callIndexes map[callIndexKey]int64
}

type callIndexKey struct {
	agentID  string
	edgeKind telemetry.EdgeKind
	name     string
}

// nextCallIndex mirrors telemetry.Bus's per-(agent_id, edge_kind, name)
// counter exactly, so a replayed run's Nth call to a given edge resolves
// the same ReplayLookupKey the original recording assigned it.
func (d *Decorator) nextCallIndex(edge recorder.Edge) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.callIndexes == nil {
		d.callIndexes = make(map[callIndexKey]int64)
	}
	key := callIndexKey{agentID: edge.AgentID, edgeKind: edge.EdgeKind, name: edge.Name}
	idx := d.callIndexes[key]
	d.callIndexes[key] = idx + 1
	return idx
}

// Do replays one edge invocation, or falls through to live execution per
// the engine's mode for edge.EdgeKind.
func (d *Decorator) Do(ctx context.Context, edge recorder.Edge, input any, fn recorder.RunFn) (recorder.Result, error) {
	widened := widen(input)
	fp, err := canon.Fingerprint(widened)
	if err != nil {
		return recorder.Result{}, fmt.Errorf("replay: fingerprint live input: %w", err)
	}
	key := telemetry.LookupKey{
		EdgeKind: edge.EdgeKind, AgentID: edge.AgentID, ToolOrModelName: edge.Name,
		CallIndex: d.nextCallIndex(edge), InputsFP: fp,
	}

	call, err := d.Engine.Lookup(key)
	switch {
	case err == nil:
		if verifyErr := VerifyInput(call, widened); verifyErr != nil {
			return recorder.Result{}, verifyErr
		}
		return d.replay(ctx, edge, call)

	case Miss(err):
		mode := d.Engine.ModeFor(edge.EdgeKind)
		severity := "warn"
		if mode == rundef.ReplayStrict {
			severity = "fatal"
		}
		if _, emitErr := d.Bus.Emit(ctx, telemetry.Event{
			AgentID: edge.AgentID, Type: telemetry.TypeReplayAssert, EdgeKind: edge.EdgeKind,
			ToolOrModelName: edge.Name, Note: map[string]any{"reason": "key_miss", "severity": severity},
		}); emitErr != nil {
			return recorder.Result{}, fmt.Errorf("replay: emit replay_assert: %w", emitErr)
		}
		if mode == rundef.ReplayStrict {
			return recorder.Result{}, err
		}
		if d.Live == nil {
			return recorder.Result{}, fmt.Errorf("replay: no live fallback configured for %s miss: %w", edge.EdgeKind, err)
		}
		return d.Live.Do(ctx, edge, input, fn)

	default:
		return recorder.Result{}, err
	}
}

// replay re-emits the recorded started/chunk/terminal events onto the
// replay run's own Bus, at fresh Steps, so the replayed run ends up with
// its own well-formed ledger instead of merely returning a value. Fields
// that carry replay-relevant identity (fingerprint, tool name, duration,
// result_ref, payload) are copied verbatim from the recording.
func (d *Decorator) replay(ctx context.Context, edge recorder.Edge, call Call) (recorder.Result, error) {
	started, err := d.Bus.Emit(ctx, telemetry.Event{
		RunID: call.Started.RunID, AgentID: edge.AgentID, Type: call.Started.Type, EdgeKind: edge.EdgeKind,
		ToolOrModelName: edge.Name, Model: call.Started.Model, InputsFingerprint: call.Started.InputsFingerprint,
		Payload: call.Started.Payload,
	})
	if err != nil {
		return recorder.Result{}, fmt.Errorf("replay: emit replayed started: %w", err)
	}

	closeSpan := d.Bus.OpenSpan(started.Step)
	defer closeSpan()
	for _, chunk := range call.Chunks {
		parent := started.Step
		if _, err := d.Bus.Emit(ctx, telemetry.Event{
			RunID: chunk.RunID, AgentID: edge.AgentID, Type: telemetry.TypeLLMCallChunk, EdgeKind: edge.EdgeKind,
			ToolOrModelName: edge.Name, ParentStep: &parent, Payload: chunk.Payload, Note: chunk.Note,
		}); err != nil {
			return recorder.Result{}, fmt.Errorf("replay: emit replayed chunk: %w", err)
		}
	}

	terminal, err := d.Bus.Emit(ctx, telemetry.Event{
		RunID: call.Terminal.RunID, AgentID: edge.AgentID, Type: call.Terminal.Type, EdgeKind: edge.EdgeKind,
		ToolOrModelName: edge.Name, DurationMS: call.Terminal.DurationMS, Payload: call.Terminal.Payload,
		ResultRef: call.Terminal.ResultRef, Note: call.Terminal.Note,
	})
	if err != nil {
		return recorder.Result{}, fmt.Errorf("replay: emit replayed terminal: %w", err)
	}

	var output any
	if terminal.Payload.Inline != nil {
		output = terminal.Payload.Inline["value"]
	}
	var outErr error
	if terminal.Type == telemetry.TypeAdapterError {
		if msg, ok := terminal.Note["message"].(string); ok {
			outErr = fmt.Errorf("replay: %s", msg)
		} else {
			outErr = fmt.Errorf("replay: adapter_error during replayed call")
		}
	}
	return recorder.Result{Output: output, Started: started, Finished: terminal}, outErr
}
