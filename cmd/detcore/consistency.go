package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/detcore/detcore/internal/adapter"
	"github.com/detcore/detcore/internal/consensus"
	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/multirun"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/safety/policy"
	"github.com/detcore/detcore/internal/telemetry"
)

func newConsistencyCmd() *cobra.Command {
	f := &commonFlags{}
	var runs int
	var strategy string
	var threshold float64
	var seedsCSV string
	var parallel bool
	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Run a task N times with distinct seeds and report consensus/reliability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsistency(cmd.Context(), f, runs, strategy, threshold, seedsCSV, parallel)
		},
	}
	bindCommonFlags(cmd, f)
	cmd.Flags().IntVar(&runs, "runs", multirun.DefaultRuns, "number of runs")
	cmd.Flags().StringVar(&strategy, "strategy", "majority", "majority|weighted|threshold|unanimous|best_of_n")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "pass threshold for the threshold strategy")
	cmd.Flags().StringVar(&seedsCSV, "seeds", "", "comma-separated explicit seed list")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run children concurrently")
	return cmd
}

func runConsistency(ctx context.Context, f *commonFlags, runs int, strategyFlag string, threshold float64, seedsCSV string, parallel bool) error {
	policies := policy.NewManager()
	if !policies.SetActive(f.policy) {
		return fail(exitConfigurationErr, fmt.Errorf("unknown policy %q", f.policy))
	}
	active, _ := policies.Active()

	cfg := multirun.Config{
		GroupID: "group-" + f.task, N: runs, Strategy: multirun.SeedSequential, BaseSeed: f.seed,
	}
	if parallel {
		cfg.Mode = multirun.ModeParallel
	} else {
		cfg.Mode = multirun.ModeSerial
	}
	if seedsCSV != "" {
		seeds, err := parseSeeds(seedsCSV)
		if err != nil {
			return fail(exitConfigurationErr, err)
		}
		cfg.Strategy, cfg.Seeds, cfg.N = multirun.SeedUserSupplied, seeds, len(seeds)
	}

	var mu sync.Mutex
	var childRecords []consensus.RunRecord
	executor := multirun.New(func(ctx context.Context, runID string, seed int64, index int) (multirun.RunRecord, error) {
		record, err := runOneConsistencyChild(ctx, f, active, runID, seed)
		mu.Lock()
		childRecords = append(childRecords, record)
		mu.Unlock()
		return multirun.RunRecord{}, err
	})

	_, groupManifest, err := executor.Execute(ctx, cfg)
	if err != nil {
		return fail(exitAdapterError, err)
	}

	strategy := consensus.Strategy(strategyFlag)
	report, err := consensus.Evaluate(childRecords, strategy, threshold, false)
	if err != nil {
		return fail(exitGenericFailure, err)
	}

	fmt.Printf("consistency: group=%s decision=%s confidence=%.3f reliability=%.3f (%s) success_rate=%.3f\n",
		groupManifest.GroupID, report.Decision, report.Confidence, report.ReliabilityScore, report.Rating, report.SuccessRate)
	if len(report.OutlierRunIDs) > 0 {
		fmt.Printf("consistency: outliers=%s\n", strings.Join(report.OutlierRunIDs, ","))
	}
	return nil
}

// runOneConsistencyChild records one child run of the echo task and reports
// it as a consensus.RunRecord: verified_pass is whether the adapter
// returned status "ok".
func runOneConsistencyChild(ctx context.Context, f *commonFlags, active policy.Policy, runID string, seed int64) (consensus.RunRecord, error) {
	runDir := filepath.Join(f.out, runID)
	sink, err := telemetry.NewJSONLSink(filepath.Join(ensureDir(runDir), "events.jsonl"), false)
	if err != nil {
		return consensus.RunRecord{RunID: runID, Seed: seed}, err
	}
	defer sink.Close()
	bus := telemetry.NewBus(sink, nil)

	m := manifest.New(runID, "dev", f.task, seed,
		manifest.PolicyRef{Active: active.Name(), Digest: active.Digest()}, manifest.RetentionDev, "jsonl")
	clock := provider.NewRecordingClock()
	rec := recorder.New(rundef.RunID(runID), bus, clock, f.out, m)

	start := time.Now()
	a, err := newAdapter(f.framework, bus, rec, "agent-"+runID)
	if err != nil {
		return consensus.RunRecord{RunID: runID, Seed: seed}, err
	}
	if err := a.Configure(adapter.Config{Framework: f.framework, Mode: adapter.ParityAdvisory}); err != nil {
		return consensus.RunRecord{RunID: runID, Seed: seed}, err
	}
	result, runErr := a.RunTask(ctx, adapter.Task{ID: f.task, Spec: map[string]any{"prompt": "say hi"}})
	duration := time.Since(start).Milliseconds()

	status := "ok"
	if runErr != nil || result.Status != "ok" {
		status = "adapter_error"
	}
	m.Finalize(status)
	_ = m.WriteYAML(filepath.Join(runDir, "manifest.yaml"))

	return consensus.RunRecord{
		RunID: runID, Seed: seed, VerifiedPass: status == "ok",
		VerificationScore: verificationScore(status == "ok"), DurationMS: duration,
	}, nil
}

func verificationScore(pass bool) float64 {
	if pass {
		return 1
	}
	return 0
}

func parseSeeds(csv string) ([]int64, error) {
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
