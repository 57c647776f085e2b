package recorder_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/telemetry"
)

func newRecorder(t *testing.T) (*recorder.Recorder, *telemetry.MemorySink) {
	t.Helper()
	sink := telemetry.NewMemorySink()
	bus := telemetry.NewBus(sink, nil)
	clock := provider.NewRecordingClock()
	m := manifest.New("run-1", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	r := recorder.New(rundef.RunID("run-1"), bus, clock, t.TempDir(), m)
	return r, sink
}

func TestDoEmitsStartedAndFinished(t *testing.T) {
	r, sink := newRecorder(t)

	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeTool, Name: "search"}
	result, err := r.Do(context.Background(), edge, map[string]any{"query": "hi"}, func(ctx context.Context) (any, error) {
		return map[string]any{"result": "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": "ok"}, result.Output)

	events := sink.Snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, telemetry.TypeToolCallStarted, events[0].Type)
	assert.NotEmpty(t, events[0].InputsFingerprint)
	assert.Equal(t, telemetry.TypeToolCallFinished, events[1].Type)
	assert.GreaterOrEqual(t, events[1].DurationMS, int64(0))
	assert.Equal(t, int64(0), events[0].CallIndex)
}

func TestDoAssignsSequentialCallIndexPerNameAndAgent(t *testing.T) {
	r, sink := newRecorder(t)
	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeTool, Name: "search"}
	for i := 0; i < 3; i++ {
		_, err := r.Do(context.Background(), edge, map[string]any{"i": i}, func(ctx context.Context) (any, error) {
			return map[string]any{"i": i}, nil
		})
		require.NoError(t, err)
	}

	events := sink.Snapshot()
	var started []telemetry.Event
	for _, e := range events {
		if e.Type == telemetry.TypeToolCallStarted {
			started = append(started, e)
		}
	}
	require.Len(t, started, 3)
	assert.Equal(t, []int64{0, 1, 2}, []int64{started[0].CallIndex, started[1].CallIndex, started[2].CallIndex})
}

func TestDoEmitsAdapterErrorOnFailure(t *testing.T) {
	r, sink := newRecorder(t)
	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeLLM, Name: "claude"}
	wantErr := errors.New("boom")

	_, err := r.Do(context.Background(), edge, map[string]any{"prompt": "hi"}, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	events := sink.Snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, telemetry.TypeLLMCallStarted, events[0].Type)
	assert.Equal(t, telemetry.TypeAdapterError, events[1].Type)
	assert.Equal(t, "boom", events[1].Note["message"])
}

func TestDoSpillsLargeOutputToBlobAndManifest(t *testing.T) {
	r, sink := newRecorder(t)
	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeTool, Name: "dump"}

	big := strings.Repeat("x", 8192)
	_, err := r.Do(context.Background(), edge, map[string]any{"op": "dump"}, func(ctx context.Context) (any, error) {
		return map[string]any{"blob": big}, nil
	})
	require.NoError(t, err)

	events := sink.Snapshot()
	finished := events[1]
	assert.NotEmpty(t, finished.ResultRef)
	assert.Nil(t, finished.Payload.Inline)

	require.Len(t, r.Manifest.Artifacts, 1)
	blobPath := filepath.Join(r.ArtifactRoot, finished.ResultRef)
	assert.FileExists(t, blobPath)
}

func TestDoInlinesSmallOutput(t *testing.T) {
	r, sink := newRecorder(t)
	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeTool, Name: "echo"}

	_, err := r.Do(context.Background(), edge, map[string]any{"op": "echo"}, func(ctx context.Context) (any, error) {
		return map[string]any{"msg": "hi"}, nil
	})
	require.NoError(t, err)

	events := sink.Snapshot()
	finished := events[1]
	assert.Empty(t, finished.ResultRef)
	assert.NotNil(t, finished.Payload.Inline)
}

func TestEmitChunkCarriesParentStepAndOrdinal(t *testing.T) {
	r, sink := newRecorder(t)
	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeLLM, Name: "claude"}

	result, err := r.Do(context.Background(), edge, map[string]any{"prompt": "hi"}, func(ctx context.Context) (any, error) {
		require.NoError(t, r.EmitChunk(ctx, edge, mustStep(t, sink), 0, "partial chunk one"))
		require.NoError(t, r.EmitChunk(ctx, edge, mustStep(t, sink), 1, "partial chunk two"))
		return map[string]any{"text": "partial chunk one partial chunk two"}, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Output)

	events := sink.Snapshot()
	var chunks []telemetry.Event
	for _, e := range events {
		if e.Type == telemetry.TypeLLMCallChunk {
			chunks = append(chunks, e)
		}
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Note["ordinal"])
	assert.Equal(t, 1, chunks[1].Note["ordinal"])
	require.NotNil(t, chunks[0].ParentStep)
	assert.Equal(t, *chunks[0].ParentStep, *chunks[1].ParentStep)
}

// mustStep returns the step of the most recently emitted started event, the
// same way an adapter wrapping Do would thread its own parent step through
// to EmitChunk.
func mustStep(t *testing.T, sink *telemetry.MemorySink) int64 {
	t.Helper()
	events := sink.Snapshot()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type.IsStarted() {
			return events[i].Step
		}
	}
	t.Fatal("no started event found")
	return 0
}
