// Package multirun implements C9: the Multi-Run Executor orchestrates N
// seeded child runs of a task against one adapter, in parallel or serial
// execution mode, and folds the results into a group manifest. It is
// grounded on runtime/registry/manager.go's sync-loop goroutine
// management (context-scoped cancellation, sync.WaitGroup over a fixed
// worker set) generalized from registry polling to child-run fan-out, and
// on golang.org/x/sync/errgroup for bounded concurrent execution with
// first-error propagation relaxed to "collect all, fail only if all fail"
// per spec.md's C9 semantics.
package multirun

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ExecutionMode selects how child runs are scheduled.
type ExecutionMode string

const (
	ModeParallel ExecutionMode = "parallel"
	ModeSerial   ExecutionMode = "serial"
)

// SeedStrategy selects how child seeds are derived.
type SeedStrategy string

const (
	// SeedSequential assigns seeds base, base+1, base+2, ...
	SeedSequential SeedStrategy = "sequential"
	// SeedRandom draws independent random seeds.
	SeedRandom SeedStrategy = "random"
	// SeedUserSupplied uses the caller-provided Seeds list verbatim; its
	// length must equal N.
	SeedUserSupplied SeedStrategy = "user-supplied"
)

// DefaultRuns is the default N when the caller does not specify one.
const DefaultRuns = 5

// GracePeriod is the unwind window for a child run after its context is
// canceled. Execute does not apply it: it waits for every child to return,
// with no deadline.
const GracePeriod = 10 * time.Second

// ChildFunc runs one seeded child. It receives the seed and zero-based run
// index and returns the child's record or an error; RunID is assigned by
// the caller (typically "<group_id>-<index>").
type ChildFunc func(ctx context.Context, runID string, seed int64, index int) (RunRecord, error)

// RunRecord is what the executor collects from each child, independent of
// the richer per-run manifest the child itself writes to its own artifact
// subtree.
type RunRecord struct {
	RunID string
	Seed  int64
	Err   error // non-nil if the child run failed
}

// GroupManifest lists the child runs an Execute call produced, per
// spec.md's "executor emits a group manifest listing child run ids and
// seeds".
type GroupManifest struct {
	GroupID     string    `yaml:"group_id"`
	ChildRunIDs []string  `yaml:"child_run_ids"`
	Seeds       []int64   `yaml:"seeds"`
	Mode        string    `yaml:"mode"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// Config configures one Execute call.
type Config struct {
	GroupID  string
	N        int // default DefaultRuns when zero
	Mode     ExecutionMode
	Strategy SeedStrategy
	Seeds    []int64 // required when Strategy == SeedUserSupplied
	BaseSeed int64   // used as the first seed for SeedSequential
}

// Executor runs N seeded children of one task against one adapter.
type Executor struct {
	run ChildFunc
}

// New constructs an Executor that invokes fn for each child run.
func New(fn ChildFunc) *Executor {
	return &Executor{run: fn}
}

// Execute runs cfg.N children per cfg.Mode, each with a distinct seed, and
// returns their records plus a GroupManifest. It never returns an error
// for individual child failures; it fails the whole call only when every
// child fails, per spec.md's "Failures in individual runs do not abort
// the group unless all runs fail."
func (e *Executor) Execute(ctx context.Context, cfg Config) ([]RunRecord, GroupManifest, error) {
	n := cfg.N
	if n <= 0 {
		n = DefaultRuns
	}
	seeds, err := resolveSeeds(cfg, n)
	if err != nil {
		return nil, GroupManifest{}, err
	}

	runIDs := make([]string, n)
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("%s-%d", cfg.GroupID, i)
	}

	var records []RunRecord
	switch cfg.Mode {
	case ModeSerial:
		records = e.runSerial(ctx, runIDs, seeds)
	default:
		records = e.runParallel(ctx, runIDs, seeds)
	}

	manifest := GroupManifest{
		GroupID: cfg.GroupID, ChildRunIDs: runIDs, Seeds: seeds,
		Mode: string(cfg.Mode), CreatedAt: time.Now(),
	}

	failures := 0
	for _, r := range records {
		if r.Err != nil {
			failures++
		}
	}
	recordGroupMetrics(cfg.GroupID, string(cfg.Mode), n, failures)
	if failures == n {
		return records, manifest, fmt.Errorf("multirun: all %d runs failed", n)
	}
	return records, manifest, nil
}

func (e *Executor) runSerial(ctx context.Context, runIDs []string, seeds []int64) []RunRecord {
	records := make([]RunRecord, len(runIDs))
	for i := range runIDs {
		if ctx.Err() != nil {
			records[i] = RunRecord{RunID: runIDs[i], Seed: seeds[i], Err: ctx.Err()}
			continue
		}
		records[i] = e.runOne(ctx, runIDs[i], seeds[i], i)
	}
	return records
}

func (e *Executor) runParallel(ctx context.Context, runIDs []string, seeds []int64) []RunRecord {
	records := make([]RunRecord, len(runIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(contextWithoutCancelPropagation(ctx))
	for i := range runIDs {
		i := i
		g.Go(func() error {
			rec := e.runOne(gctx, runIDs[i], seeds[i], i)
			mu.Lock()
			records[i] = rec
			mu.Unlock()
			return nil // child errors are recorded, never abort sibling runs
		})
	}
	_ = g.Wait()
	return records
}

func (e *Executor) runOne(ctx context.Context, runID string, seed int64, index int) RunRecord {
	rec, err := e.run(ctx, runID, seed, index)
	rec.RunID, rec.Seed, rec.Err = runID, seed, err
	return rec
}

// contextWithoutCancelPropagation returns ctx unchanged; kept as a named
// seam so a future bounded grace-window kill (spec.md's "each child's
// enforcers ensure any sandboxed process is killed within a bounded grace
// window") can wrap deadlines per child without touching call sites.
func contextWithoutCancelPropagation(ctx context.Context) context.Context { return ctx }

func resolveSeeds(cfg Config, n int) ([]int64, error) {
	switch cfg.Strategy {
	case SeedUserSupplied:
		if len(cfg.Seeds) != n {
			return nil, fmt.Errorf("multirun: user-supplied seed list has %d entries, want %d", len(cfg.Seeds), n)
		}
		out := make([]int64, n)
		copy(out, cfg.Seeds)
		return out, nil
	case SeedRandom:
		out := make([]int64, n)
		for i := range out {
			out[i] = rand.Int63()
		}
		return out, nil
	default: // SeedSequential
		base := cfg.BaseSeed
		out := make([]int64, n)
		for i := range out {
			out[i] = base + int64(i)
		}
		return out, nil
	}
}
