package provider

import "encoding/binary"

// RNG returns uniform 64-bit integers from a fixed, counter-based
// pseudo-random algorithm. The algorithm (BLAKE3 keyed by seed and counter)
// is part of the determinism contract: any conforming implementation,
// regardless of language, must produce the same sequence for the same seed
// so that recordings stay portable across adapter rewrites.
type RNG struct {
	seed    uint64
	counter uint64
}

// NewRNG constructs an RNG from a sub-stream seed (see Bus.SubSeed). The
// counter starts at zero; Split derives independent named children without
// disturbing the parent's position.
func NewRNG(seed uint64) *RNG {
	return &RNG{seed: seed}
}

// Uint64 returns the next uniform 64-bit integer in the stream and advances
// the counter. Calls are deterministic: the Nth call after construction
// always returns the same value for a given seed.
func (r *RNG) Uint64() uint64 {
	v := counterBlock(r.seed, r.counter)
	r.counter++
	return v
}

// Split derives an independent child RNG for the named sub-stream, without
// consuming from the parent's counter. This lets unrelated concerns (for
// example, two different tools invoked in the same step) draw randomness
// without one call shifting the other's sequence.
func (r *RNG) Split(name string) *RNG {
	bus := &Bus{runSeed: int64(r.seed)}
	return NewRNG(bus.SubSeed(name))
}

// counterBlock derives a single 64-bit pseudo-random value from a seed and
// counter using the same BLAKE3 construction as Bus.SubSeed, giving one
// fixed algorithm for the whole determinism contract.
func counterBlock(seed, counter uint64) uint64 {
	bus := &Bus{runSeed: int64(seed)}
	var name [8]byte
	binary.LittleEndian.PutUint64(name[:], counter)
	return bus.SubSeed(string(name[:]))
}
