// Package provider implements the deterministic Clock, RNG, UUID, and
// TempPath facilities every adapter edge must use instead of reaching for OS
// facilities directly. All four are seeded from a single per-run seed bus so
// that record and replay reproduce the same values deterministically; direct
// use of time.Now, math/rand's global source, or os.MkdirTemp from adapter
// code is a policy violation (see safety/enforce).
package provider

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Bus derives independent, collision-resistant sub-streams from a single run
// seed. Each provider pulls its own sub-stream by name so that, for example,
// advancing the Clock never perturbs the RNG's sequence.
type Bus struct {
	runSeed int64
}

// NewBus constructs a seed bus for one run. The same runSeed always yields
// the same derived sub-streams, which is what makes replay possible.
func NewBus(runSeed int64) *Bus {
	return &Bus{runSeed: runSeed}
}

// SubSeed derives a 64-bit seed for the named sub-stream (for example
// "clock", "rng", "uuid"). Derivation hashes the run seed and the name with
// BLAKE3, so sub-streams never collide even for adversarially chosen names.
func (b *Bus) SubSeed(name string) uint64 {
	h := blake3.New()
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], uint64(b.runSeed))
	_, _ = h.Write(seedBytes[:])
	_, _ = h.Write([]byte(name))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}
