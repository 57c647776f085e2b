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

func recordOneCall(t *testing.T) []telemetry.Event {
	t.Helper()
	sink := telemetry.NewMemorySink()
	bus := telemetry.NewBus(sink, nil)
	clock := provider.NewRecordingClock()
	m := manifest.New("run-1", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	r := recorder.New(rundef.RunID("run-1"), bus, clock, t.TempDir(), m)

	edge := recorder.Edge{AgentID: "agent-1", EdgeKind: telemetry.EdgeLLM, Name: "claude"}
	_, err := r.Do(context.Background(), edge, map[string]any{"prompt": "say hi"}, func(ctx context.Context) (any, error) {
		return map[string]any{"text": "hi"}, nil
	})
	require.NoError(t, err)
	return sink.Snapshot()
}

func TestLookupFindsRecordedCall(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)

	key := events[0].Key()
	call, err := engine.Lookup(key)
	require.NoError(t, err)
	assert.Equal(t, telemetry.TypeLLMCallStarted, call.Started.Type)
	assert.Equal(t, telemetry.TypeLLMCallFinished, call.Terminal.Type)
}

func TestLookupMissReturnsKeyMiss(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)

	_, err := engine.Lookup(telemetry.LookupKey{EdgeKind: telemetry.EdgeTool, ToolOrModelName: "nonexistent"})
	require.Error(t, err)
	assert.True(t, replay.Miss(err))
}

func TestLookupSameKeyTwiceIsKeyMiss(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)
	key := events[0].Key()

	_, err := engine.Lookup(key)
	require.NoError(t, err)

	_, err = engine.Lookup(key)
	require.Error(t, err)
	var mismatch *replay.Mismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "key_miss", mismatch.Reason) // queue now empty: a second pop is a miss, not a replay
}

func TestVerifyInputDetectsHashMismatch(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)
	call, err := engine.Lookup(events[0].Key())
	require.NoError(t, err)

	err = replay.VerifyInput(call, map[string]any{"prompt": "say bye"})
	require.Error(t, err)
	var mismatch *replay.Mismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "payload_hash_mismatch", mismatch.Reason)
}

func TestVerifyInputAcceptsIdenticalInput(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayStrict, nil)
	call, err := engine.Lookup(events[0].Key())
	require.NoError(t, err)

	require.NoError(t, replay.VerifyInput(call, map[string]any{"prompt": "say hi"}))
}

func TestHybridModeDefaultsUnlistedEdgeKindToStrict(t *testing.T) {
	events := recordOneCall(t)
	engine := replay.New(events, rundef.ReplayHybrid, replay.ModeMap{telemetry.EdgeTool: rundef.ReplayWarn})
	_, err := engine.Lookup(telemetry.LookupKey{EdgeKind: telemetry.EdgeLLM, ToolOrModelName: "missing"})
	require.Error(t, err)
	assert.True(t, replay.Miss(err))

	assert.Equal(t, rundef.ReplayWarn, engine.ModeFor(telemetry.EdgeTool))
	assert.Equal(t, rundef.ReplayStrict, engine.ModeFor(telemetry.EdgeLLM))
}

func TestWindowFromCheckpointSkipsEarlierEvents(t *testing.T) {
	events := []telemetry.Event{
		{Step: 0, Type: telemetry.TypeAgentStart},
		{Step: 1, Type: telemetry.TypeCheckpoint},
		{Step: 2, Type: telemetry.TypeAgentStop},
	}
	windowed := replay.Window(events, 1, -1)
	require.Len(t, windowed, 2)
	assert.Equal(t, int64(1), windowed[0].Step)
}

func TestWindowUntilStepStopsAfterTarget(t *testing.T) {
	events := []telemetry.Event{
		{Step: 0, Type: telemetry.TypeAgentStart},
		{Step: 1, Type: telemetry.TypeLLMCallStarted},
		{Step: 2, Type: telemetry.TypeLLMCallFinished},
	}
	windowed := replay.Window(events, -1, 1)
	require.Len(t, windowed, 2)
}

func TestReplayClockReconstructsRecordedNanoseconds(t *testing.T) {
	events := recordOneCall(t)
	clock := replay.ReplayClock(events)

	var started telemetry.Event
	for _, e := range events {
		if e.Type == telemetry.TypeLLMCallStarted {
			started = e
		}
	}
	startNS, err := clock.Now(2 * started.Step)
	require.NoError(t, err)
	assert.Greater(t, startNS, int64(0))
}
