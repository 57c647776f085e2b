package replay

import (
	"fmt"

	"github.com/detcore/detcore/internal/telemetry"
)

// Mismatch is ReplayMismatch from spec.md §7: a key miss or a hash mismatch
// between a live edge and its recording. Strict mode treats every Mismatch
// as fatal. In warn mode a key_miss is reported with a warn-severity
// replay_assert event and falls through to live execution;
// payload_hash_mismatch and out_of_order stay fatal.
type Mismatch struct {
	Reason string // "key_miss" | "payload_hash_mismatch" | "out_of_order"
	Key    telemetry.LookupKey
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("replay: %s for %+v", m.Reason, m.Key)
}

// ErrOutOfOrder is a sentinel Mismatch for the case where a live edge's
// ReplayLookupKey resolves to a recorded step earlier than the last step
// already consumed, meaning the live adapter diverged in ordering from the
// recording (the replay_out_of_order case in spec.md's S6 scenario).
// Lookup does not return this value: it returns a new *Mismatch with the
// same Reason and the offending Key, so errors.Is(err, ErrOutOfOrder) does
// not match Lookup's errors.
var ErrOutOfOrder = &Mismatch{Reason: "out_of_order"}
