package replay_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/replay"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/telemetry"
)

func newReplayBus() telemetry.Bus {
	return telemetry.NewBus(telemetry.NewMemorySink(), nil)
}

func TestDecoratorReplaysRecordedCallWithoutCallingFn(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)
	decorator := &replay.Decorator{Engine: engine, Bus: newReplayBus()}

	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeLLM, Name: "claude"}
	called := false
	result, err := decorator.Do(context.Background(), edge, map[string]any{"prompt": "say hi"},
		func(ctx context.Context) (any, error) {
			called = true
			return nil, nil
		})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, map[string]any{"text": "hi"}, result.Output)
}

func TestDecoratorStrictMissIsFatal(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)
	decorator := &replay.Decorator{Engine: engine, Bus: newReplayBus()}

	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeLLM, Name: "claude"}
	_, err := decorator.Do(context.Background(), edge, map[string]any{"prompt": "different prompt"},
		func(ctx context.Context) (any, error) { return nil, nil })
	require.Error(t, err)
	assert.True(t, replay.Miss(err))
}

func TestDecoratorWarnModeFallsThroughToLive(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayWarn, nil)

	sink := telemetry.NewMemorySink()
	bus := telemetry.NewBus(sink, nil)
	clock := provider.NewRecordingClock()
	m := manifest.New("run-2", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	live := recorder.New(rundef.RunID("run-2"), bus, clock, t.TempDir(), m)
	decorator := &replay.Decorator{Engine: engine, Live: live, Bus: bus}

	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeLLM, Name: "claude"}
	called := false
	result, err := decorator.Do(context.Background(), edge, map[string]any{"prompt": "a new prompt"},
		func(ctx context.Context) (any, error) {
			called = true
			return map[string]any{"text": "live answer"}, nil
		})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, map[string]any{"text": "live answer"}, result.Output)
}
