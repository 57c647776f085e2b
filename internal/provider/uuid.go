package provider

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// UUIDSource derives stable, replayable UUIDs from the RNG stream instead of
// the OS entropy pool, so a recorded run and its replay mint identical
// identifiers at every step.
type UUIDSource struct {
	rng *RNG
}

// NewUUIDSource builds a UUIDSource drawing from rng. Pass rng.Split("uuid")
// from the run's top-level RNG so UUID generation never perturbs unrelated
// randomness consumers.
func NewUUIDSource(rng *RNG) *UUIDSource {
	return &UUIDSource{rng: rng}
}

// New returns the next UUID in the deterministic stream, formatted as a
// standard RFC 4122 version-4-shaped string (the variant/version bits are
// fixed so the output remains a valid, stable UUID textual format across
// implementations).
func (u *UUIDSource) New() uuid.UUID {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], u.rng.Uint64())
	binary.BigEndian.PutUint64(b[8:16], u.rng.Uint64())
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	id, _ := uuid.FromBytes(b[:])
	return id
}
