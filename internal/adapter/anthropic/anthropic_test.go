package anthropic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/adapter/anthropic"
	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/telemetry"
)

func TestNewRequiresAPIKey(t *testing.T) {
	sink := telemetry.NewMemorySink()
	bus := telemetry.NewBus(sink, nil)
	clock := provider.NewRecordingClock()
	m := manifest.New("run-anthropic", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	rec := recorder.New(rundef.RunID("run-anthropic"), bus, clock, t.TempDir(), m)

	_, err := anthropic.New("", "claude-sonnet-4-5-20250929", bus, rec, "agent-anthropic")
	assert.Error(t, err)
}

func TestNewBuildsAdapterWithAPIKey(t *testing.T) {
	sink := telemetry.NewMemorySink()
	bus := telemetry.NewBus(sink, nil)
	clock := provider.NewRecordingClock()
	m := manifest.New("run-anthropic", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	rec := recorder.New(rundef.RunID("run-anthropic"), bus, clock, t.TempDir(), m)

	a, err := anthropic.New("test-key", "claude-sonnet-4-5-20250929", bus, rec, "agent-anthropic")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Empty(t, a.Events())
}
