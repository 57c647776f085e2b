// Package rundef defines the identifiers and mode enumerations shared by
// the Recorder, Replay Engine, and Multi-Run Executor: the 128-bit RunId,
// and the record/replay mode vocabulary. Keeping them in one leaf package
// avoids an import cycle between internal/recorder and internal/replay,
// which both need to agree on what a "mode" and a "run" are.
package rundef

import (
	"github.com/google/uuid"

	"github.com/detcore/detcore/internal/provider"
)

// RunID is the 128-bit identifier minted at run start and included in every
// artifact path and event.
type RunID string

// NewRunID mints a RunID from the deterministic UUID stream so that, under
// replay, a child run started by the Multi-Run Executor reproduces the same
// identifier as the original recording.
func NewRunID(uuids *provider.UUIDSource) RunID {
	return RunID(uuids.New().String())
}

// ParseRunID validates and wraps an externally supplied run id string.
func ParseRunID(s string) (RunID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RunID(s), nil
}

// Mode selects whether a run is being recorded or replayed.
type Mode string

const (
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

// ReplayMode governs how the Replay Engine handles a lookup miss.
type ReplayMode string

const (
	// ReplayStrict requires every live edge to be found in the recording;
	// a miss is a fatal replay_assert failure.
	ReplayStrict ReplayMode = "strict"
	// ReplayWarn emits a warn-severity replay_assert on a miss and falls
	// through to live execution, itself subject to the active policy.
	ReplayWarn ReplayMode = "warn"
	// ReplayHybrid selects strict or warn per edge_kind via a mode map.
	ReplayHybrid ReplayMode = "hybrid"
)
