package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/provider"
)

func TestBusSubSeedDeterministicAndDistinct(t *testing.T) {
	bus := provider.NewBus(42)
	clockSeed1 := bus.SubSeed("clock")
	clockSeed2 := bus.SubSeed("clock")
	rngSeed := bus.SubSeed("rng")

	assert.Equal(t, clockSeed1, clockSeed2)
	assert.NotEqual(t, clockSeed1, rngSeed)
}

func TestRNGDeterministicSequence(t *testing.T) {
	bus := provider.NewBus(7)
	r1 := provider.NewRNG(bus.SubSeed("rng"))
	r2 := provider.NewRNG(bus.SubSeed("rng"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, r1.Uint64(), r2.Uint64())
	}
}

func TestRNGSplitIndependentFromParent(t *testing.T) {
	bus := provider.NewBus(7)
	r := provider.NewRNG(bus.SubSeed("rng"))
	before := r.Uint64()
	_ = r.Split("sub").Uint64()
	after := r.Uint64()
	assert.NotEqual(t, before, after)
}

func TestUUIDSourceDeterministic(t *testing.T) {
	bus := provider.NewBus(99)
	u1 := provider.NewUUIDSource(provider.NewRNG(bus.SubSeed("uuid")))
	u2 := provider.NewUUIDSource(provider.NewRNG(bus.SubSeed("uuid")))

	assert.Equal(t, u1.New(), u2.New())
	assert.Equal(t, byte(4), u1.New().Version())
}

func TestTempPathShape(t *testing.T) {
	tp := provider.NewTempPath("run-123", "/tmp")
	assert.Equal(t, "/tmp/run-123/7/workdir", tp.Path(7, "workdir"))

	rebound := tp.Rebind("/replay-ws")
	assert.Equal(t, "/replay-ws/run-123/7/workdir", rebound.Path(7, "workdir"))
}

func TestReplayClockFailsOnMissingStep(t *testing.T) {
	rc := provider.NewReplayClock(map[int64]int64{0: 100})
	v, err := rc.Now(0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)

	_, err = rc.Now(1)
	require.Error(t, err)
}

func TestRecordingClockRemembersValue(t *testing.T) {
	c := provider.NewRecordingClock()
	v1, err := c.Now(0)
	require.NoError(t, err)
	v2, err := c.Now(0)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	rec, ok := provider.Recorded(c, 0)
	require.True(t, ok)
	assert.Equal(t, v1, rec)
}
