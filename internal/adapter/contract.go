// Package adapter implements C8: the common contract every orchestrator
// integration satisfies, plus the shared wiring (sandbox, enforcers,
// providers, Recorder/Replay decorators) that lets an Adapter run under
// record or replay without knowing the difference.
package adapter

import (
	"context"

	"github.com/detcore/detcore/internal/telemetry"
)

// ParityMode selects whether an adapter applies its own changes or merely
// reports what it would do.
type ParityMode string

const (
	// ParityAutonomous lets the adapter apply changes directly (for example,
	// committing and opening a pull request).
	ParityAutonomous ParityMode = "autonomous"
	// ParityAdvisory restricts the adapter to producing a diff or plan
	// without mutating anything outside its sandbox.
	ParityAdvisory ParityMode = "advisory"
)

// Config configures one adapter instance before RunTask is called.
type Config struct {
	Framework string
	Mode      ParityMode
	Params    map[string]any
}

// Task names the unit of work an adapter executes.
type Task struct {
	ID   string
	Path string // on-disk task definition, when the task is file-backed
	Spec map[string]any
}

// RunResult is what RunTask returns once a task has finished, successfully
// or not.
type RunResult struct {
	RunID    string
	Status   string // "ok" | "policy_violation" | "replay_mismatch" | "adapter_error"
	ExitCode int
	Summary  string
}

// Adapter is the minimal contract every orchestrator integration
// implements: configure, run one task, and expose the events it emitted.
// Implementations must route every I/O edge through the active Recorder or
// Replay decorator, use Deterministic Providers instead of OS facilities,
// and route code execution and filesystem/network access through the
// safety enforcers.
type Adapter interface {
	Configure(cfg Config) error
	RunTask(ctx context.Context, task Task) (RunResult, error)
	Events() []telemetry.Event
}
