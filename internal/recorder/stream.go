package recorder

import (
	"context"
	"fmt"

	"github.com/detcore/detcore/internal/telemetry"
)

// EmitChunk records one streamed output fragment under the span opened for
// parentStep (normally the llm_call.started step). ordinal is the chunk's
// position within the stream and is preserved verbatim so the Replay
// Engine can enforce strict ordinal ordering (spec.md's replay_out_of_order
// rule).
func (r *Recorder) EmitChunk(ctx context.Context, edge Edge, parentStep int64, ordinal int, chunk string) error {
	payload, err := inlinePayload(map[string]any{"ordinal": ordinal, "text": chunk})
	if err != nil {
		return fmt.Errorf("recorder: canonicalize chunk: %w", err)
	}
	_, err = r.Bus.Emit(ctx, telemetry.Event{
		RunID: string(r.RunID), AgentID: edge.AgentID, Type: telemetry.TypeLLMCallChunk, EdgeKind: edge.EdgeKind,
		ToolOrModelName: edge.Name, ParentStep: &parentStep, Payload: payload,
		Note: map[string]any{"ordinal": ordinal},
	})
	if err != nil {
		return fmt.Errorf("recorder: emit chunk: %w", err)
	}
	return nil
}
