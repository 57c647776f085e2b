// Package recorder implements C6: it wraps every adapter I/O edge with the
// record-side contract from spec.md §4.C6 — canonicalize the input, assign
// a call_index, emit the started/finished pair, execute live, spill large
// outputs to content-addressed blobs, and contribute to the run manifest.
package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/detcore/detcore/internal/canon"
	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/telemetry"
)

// inlineThreshold is the payload size, in canonical bytes, above which the
// Recorder spills to a blob file and references it via result_ref instead
// of inlining (spec.md's "For large or binary outputs" rule; 4 KiB matches
// scenario S1's stated blob threshold).
const inlineThreshold = 4096

// Edge describes the identity of one I/O edge invocation, independent of
// its input/output payloads.
type Edge struct {
	AgentID  string
	EdgeKind telemetry.EdgeKind
	Name     string // tool_or_model_name
	Model    string
}

// Recorder wraps I/O edges for one run. It is not safe to share across
// runs: construct one per RunID.
type Recorder struct {
	RunID        rundef.RunID
	Bus          telemetry.Bus
	Clock        provider.Clock
	ArtifactRoot string // artifacts/<run_id>
	Manifest     *manifest.Manifest
}

// New constructs a Recorder rooted at artifactRoot/<run_id>.
func New(runID rundef.RunID, bus telemetry.Bus, clock provider.Clock, artifactRoot string, m *manifest.Manifest) *Recorder {
	return &Recorder{
		RunID:        runID,
		Bus:          bus,
		Clock:        clock,
		ArtifactRoot: filepath.Join(artifactRoot, string(runID)),
		Manifest:     m,
	}
}

// RunFn is the adapter-supplied function executed live between the
// started and finished events. It receives the already-validated input and
// returns the output value (JSON-compatible, per canon's universe) or an
// error.
type RunFn func(ctx context.Context) (output any, err error)

// Result is what Do returns to the caller: the live output plus the
// started/finished events the caller may want for span correlation.
type Result struct {
	Output  any
	Started telemetry.Event
	Finished telemetry.Event
}

// Do executes one I/O edge end to end: fingerprints input, emits
// edge.kind.started, runs fn, emits edge.kind.finished (or adapter_error on
// failure), and spills large outputs to a blob.
func (r *Recorder) Do(ctx context.Context, edge Edge, input any, fn RunFn) (Result, error) {
	fp, err := canon.Fingerprint(toCanonValue(input))
	if err != nil {
		return Result{}, fmt.Errorf("recorder: canonicalize input: %w", err)
	}

	startedType, finishedType := edgeEventTypes(edge.EdgeKind)

	startPayload, err := inlinePayload(input)
	if err != nil {
		return Result{}, err
	}
	started, err := r.Bus.Emit(ctx, telemetry.Event{
		RunID: string(r.RunID), AgentID: edge.AgentID, Type: startedType, EdgeKind: edge.EdgeKind,
		ToolOrModelName: edge.Name, Model: edge.Model, InputsFingerprint: fp, Payload: startPayload,
	})
	if err != nil {
		return Result{}, fmt.Errorf("recorder: emit started: %w", err)
	}

	closeSpan := r.Bus.OpenSpan(started.Step)
	defer closeSpan()

	// The clock is keyed by 2*step/2*step+1 rather than the bare event
	// step so that an edge's start/end pair never collides with another
	// edge's keys: Bus steps are a gapless monotonic sequence, so these
	// derived keys are pairwise disjoint across every edge in the run.
	startNS, _ := r.Clock.Now(2 * started.Step)
	output, runErr := fn(ctx)
	endNS, _ := r.Clock.Now(2*started.Step + 1)
	durationMS := (endNS - startNS) / int64(time.Millisecond)

	// clock_ns_start/clock_ns_end ride along in Note (not the canonical
	// payload) purely so the Replay Engine can rebuild the exact
	// provider.Clock values this edge observed; they never affect
	// fingerprints or the pair-completeness check.
	clockNote := map[string]any{"clock_ns_start": startNS, "clock_ns_end": endNS}

	if runErr != nil {
		clockNote["message"] = runErr.Error()
		finished, emitErr := r.Bus.Emit(ctx, telemetry.Event{
			RunID: string(r.RunID), AgentID: edge.AgentID, Type: telemetry.TypeAdapterError, EdgeKind: edge.EdgeKind,
			ToolOrModelName: edge.Name, DurationMS: durationMS,
			Note: clockNote,
		})
		if emitErr != nil {
			return Result{}, fmt.Errorf("recorder: emit adapter_error: %w", emitErr)
		}
		return Result{Started: started, Finished: finished}, runErr
	}

	finishPayload, resultRef, err := r.materializeOutput(output)
	if err != nil {
		return Result{}, err
	}
	finished, err := r.Bus.Emit(ctx, telemetry.Event{
		RunID: string(r.RunID), AgentID: edge.AgentID, Type: finishedType, EdgeKind: edge.EdgeKind,
		ToolOrModelName: edge.Name, DurationMS: durationMS, Payload: finishPayload, ResultRef: resultRef,
		Note: clockNote,
	})
	if err != nil {
		return Result{}, fmt.Errorf("recorder: emit finished: %w", err)
	}
	return Result{Output: output, Started: started, Finished: finished}, nil
}

func edgeEventTypes(kind telemetry.EdgeKind) (started, finished telemetry.Type) {
	switch kind {
	case telemetry.EdgeLLM:
		return telemetry.TypeLLMCallStarted, telemetry.TypeLLMCallFinished
	case telemetry.EdgeTool:
		return telemetry.TypeToolCallStarted, telemetry.TypeToolCallFinished
	case telemetry.EdgeSandbox:
		return telemetry.TypeSandboxStarted, telemetry.TypeSandboxFinished
	default:
		return telemetry.TypeToolCallStarted, telemetry.TypeToolCallFinished
	}
}

func inlinePayload(v any) (telemetry.Payload, error) {
	b, err := canon.Canonical(toCanonValue(v))
	if err != nil {
		return telemetry.Payload{}, fmt.Errorf("recorder: canonicalize payload: %w", err)
	}
	if len(b) > inlineThreshold {
		return telemetry.Payload{}, nil
	}
	return telemetry.Payload{Inline: map[string]any{"value": v}}, nil
}

// materializeOutput inlines small outputs or spills large ones to a
// content-addressed blob under artifacts/<run_id>/blobs/<hash>.bin,
// returning a result_ref instead. Blobs are write-once: writing the same
// hash twice is a no-op, matching the spec's artifact-store idempotence
// rule.
func (r *Recorder) materializeOutput(v any) (telemetry.Payload, string, error) {
	canonical, err := canon.Canonical(toCanonValue(v))
	if err != nil {
		return telemetry.Payload{}, "", fmt.Errorf("recorder: canonicalize output: %w", err)
	}
	if len(canonical) <= inlineThreshold {
		return telemetry.Payload{Inline: map[string]any{"value": v}}, "", nil
	}
	hash := canon.HashBytes(canonical)
	blobDir := filepath.Join(r.ArtifactRoot, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return telemetry.Payload{}, "", fmt.Errorf("recorder: mkdir blobs: %w", err)
	}
	blobPath := filepath.Join(blobDir, hash+".bin")
	if _, err := os.Stat(blobPath); os.IsNotExist(err) {
		if err := os.WriteFile(blobPath, canonical, 0o644); err != nil {
			return telemetry.Payload{}, "", fmt.Errorf("recorder: write blob: %w", err)
		}
	}
	ref := filepath.Join("blobs", hash+".bin")
	if r.Manifest != nil {
		r.Manifest.AddArtifact(ref, hash)
	}
	return telemetry.Payload{Redacted: false, Kind: "blob_ref"}, ref, nil
}

// toCanonValue widens typed values into canon's JSON-compatible universe
// via a JSON round trip, since callers commonly hand the Recorder typed
// adapter structs rather than maps.
func toCanonValue(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case map[string]any, []any, string, float64, int, int64, bool, canon.BlobRef:
		return v
	default:
		return jsonWiden(v)
	}
}
