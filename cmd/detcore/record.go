package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/detcore/detcore/internal/adapter"
	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/safety/policy"
	"github.com/detcore/detcore/internal/telemetry"
)

func newRecordCmd() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run a task live and record its event ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), f)
		},
	}
	bindCommonFlags(cmd, f)
	return cmd
}

func runRecord(ctx context.Context, f *commonFlags) error {
	policies := policy.NewManager()
	if !policies.SetActive(f.policy) {
		return fail(exitConfigurationErr, fmt.Errorf("unknown policy %q", f.policy))
	}
	active, _ := policies.Active()

	runID := rundef.NewRunID(provider.NewUUIDSource(provider.NewRNG(provider.NewBus(f.seed).SubSeed("uuid"))))
	artifactRoot := f.out
	runDir := filepath.Join(artifactRoot, string(runID))

	sink, err := telemetry.NewJSONLSink(filepath.Join(ensureDir(runDir), "events.jsonl"), false)
	if err != nil {
		return fail(exitConfigurationErr, err)
	}
	defer sink.Close()
	redactor, err := telemetry.NewRedactor(nil, nil)
	if err != nil {
		return fail(exitConfigurationErr, err)
	}
	bus := telemetry.NewBus(sink, redactor)

	m := manifest.New(string(runID), "dev", f.task, f.seed,
		manifest.PolicyRef{Active: active.Name(), Digest: active.Digest()}, manifest.RetentionDev, "jsonl")

	clock := provider.NewRecordingClock()
	rec := recorder.New(runID, bus, clock, artifactRoot, m)

	parityMode := adapter.ParityAdvisory
	if f.mode == "autonomous" {
		parityMode = adapter.ParityAutonomous
	}

	a, err := newAdapter(f.framework, bus, rec, "agent-"+string(runID))
	if err != nil {
		return fail(exitConfigurationErr, err)
	}
	if err := a.Configure(adapter.Config{Framework: f.framework, Mode: parityMode}); err != nil {
		return fail(exitConfigurationErr, err)
	}

	result, runErr := a.RunTask(ctx, adapter.Task{ID: f.task, Spec: map[string]any{"prompt": "say hi"}})
	status := "ok"
	if runErr != nil || result.Status != "ok" {
		status = "adapter_error"
	}
	m.Finalize(status)
	if writeErr := m.WriteYAML(filepath.Join(runDir, "manifest.yaml")); writeErr != nil {
		return fail(exitConfigurationErr, writeErr)
	}
	if runErr != nil {
		return fail(exitAdapterError, fmt.Errorf("record: run_id=%s: %w", runID, runErr))
	}
	if result.Status != "ok" {
		return fail(exitAdapterError, fmt.Errorf("record: run_id=%s: adapter status %s", runID, result.Status))
	}
	fmt.Printf("record: run_id=%s status=%s summary=%q\n", runID, result.Status, result.Summary)
	return nil
}

func ensureDir(dir string) string {
	_ = mkdirAll(dir)
	return dir
}
