package replay

import (
	"fmt"
	"sort"

	"github.com/detcore/detcore/internal/canon"
	"github.com/detcore/detcore/internal/provider"
	"github.com/detcore/detcore/internal/rundef"
	"github.com/detcore/detcore/internal/telemetry"
)

// ModeMap resolves the effective ReplayMode for one edge_kind under
// rundef.ReplayHybrid. Unlisted edge kinds default to ReplayStrict, the
// safer choice when a hybrid map is incomplete.
type ModeMap map[telemetry.EdgeKind]rundef.ReplayMode

// Call is everything replayed for one matched ReplayLookupKey: the started
// event, any chunks emitted under its span (in recorded ordinal order), and
// its terminal finished or adapter_error event.
type Call struct {
	Started  telemetry.Event
	Chunks   []telemetry.Event
	Terminal telemetry.Event // type is *.finished or adapter_error
}

// Engine answers ReplayLookupKey queries against a loaded recording,
// enforcing the active ReplayMode and ascending-step consumption order.
type Engine struct {
	mode    rundef.ReplayMode
	hybrid  ModeMap
	events  []telemetry.Event
	queues  map[telemetry.LookupKey][]int // event index of each *.started, in step order
	byStep  map[int64]int                 // event.Step -> index
	lastStep int64
	consumed bool // becomes true once the first Lookup succeeds, so lastStep=0 isn't mistaken for "already consumed step 0"
}

// New builds an Engine over the events of one recorded run, already
// restricted to the [fromCheckpoint, untilStep] window the caller wants
// (see Window). mode is the run-wide ReplayMode; hybrid is only consulted
// when mode is rundef.ReplayHybrid.
func New(events []telemetry.Event, mode rundef.ReplayMode, hybrid ModeMap) *Engine {
	e := &Engine{
		mode:   mode,
		hybrid: hybrid,
		events: events,
		queues: make(map[telemetry.LookupKey][]int),
		byStep: make(map[int64]int, len(events)),
	}
	for i, ev := range events {
		e.byStep[ev.Step] = i
		if ev.Type.IsStarted() {
			e.queues[ev.Key()] = append(e.queues[ev.Key()], i)
		}
	}
	return e
}

// Window filters a loaded event slice to the partial-replay range spec.md
// §4.C7 describes: fromCheckpoint (-1 for "from the start") skips every
// event before the nearest checkpoint at or after that step; untilStep (-1
// for "no limit") drops everything after it.
func Window(events []telemetry.Event, fromCheckpoint, untilStep int64) []telemetry.Event {
	start := 0
	if fromCheckpoint >= 0 {
		for i, ev := range events {
			if ev.Type == telemetry.TypeCheckpoint && ev.Step >= fromCheckpoint {
				start = i
				break
			}
		}
	}
	out := make([]telemetry.Event, 0, len(events))
	for _, ev := range events[start:] {
		if untilStep >= 0 && ev.Step > untilStep {
			break
		}
		out = append(out, ev)
	}
	return out
}

// ModeFor resolves the effective ReplayMode for edgeKind: the run-wide mode
// directly, or the hybrid map's per-edge_kind entry (defaulting to strict)
// when the run is in rundef.ReplayHybrid. Callers consult this after a
// Lookup miss to decide whether to treat it as fatal or fall through to
// live execution.
func (e *Engine) ModeFor(edgeKind telemetry.EdgeKind) rundef.ReplayMode {
	if e.mode != rundef.ReplayHybrid {
		return e.mode
	}
	if m, ok := e.hybrid[edgeKind]; ok {
		return m
	}
	return rundef.ReplayStrict
}

// Lookup resolves one live edge's ReplayLookupKey against the recording. On
// a miss, strict mode returns a fatal *Mismatch{Reason: "key_miss"}; warn
// mode returns the same *Mismatch but callers are expected to treat it as
// non-fatal and fall through to live execution, themselves subject to the
// active safety policy. A key found out of ascending step order, relative
// to the last successfully consumed step, is always fatal regardless of
// mode (spec.md's ordering guarantee admits no hybrid exception).
func (e *Engine) Lookup(key telemetry.LookupKey) (Call, error) {
	queue := e.queues[key]
	if len(queue) == 0 {
		return Call{}, &Mismatch{Reason: "key_miss", Key: key}
	}
	idx := queue[0]
	e.queues[key] = queue[1:]

	started := e.events[idx]
	if e.consumed && started.Step <= e.lastStep {
		return Call{}, &Mismatch{Reason: "out_of_order", Key: key}
	}
	e.lastStep = started.Step
	e.consumed = true

	call := Call{Started: started}
	for _, ev := range e.events[idx+1:] {
		if ev.ParentStep == nil || *ev.ParentStep != started.Step {
			continue
		}
		if ev.Type == telemetry.TypeLLMCallChunk {
			call.Chunks = append(call.Chunks, ev)
			continue
		}
		call.Terminal = ev
		break
	}
	sortChunksByOrdinal(call.Chunks)
	return call, nil
}

// Miss reports whether err is a key_miss Mismatch, the condition warn and
// hybrid modes fall through on.
func Miss(err error) bool {
	m, ok := err.(*Mismatch)
	return ok && m.Reason == "key_miss"
}

// VerifyInput re-fingerprints a live edge's input and compares it against
// the recorded call's InputsFingerprint, returning a payload_hash_mismatch
// Mismatch on divergence. Strict and warn modes both treat this as fatal;
// spec.md draws the strict/warn line at misses, not at hash mismatches on a
// found key.
func VerifyInput(call Call, liveInput any) error {
	fp, err := canon.Fingerprint(widen(liveInput))
	if err != nil {
		return fmt.Errorf("replay: canonicalize live input: %w", err)
	}
	if fp != call.Started.InputsFingerprint {
		return &Mismatch{Reason: "payload_hash_mismatch", Key: call.Started.Key()}
	}
	return nil
}

// sortChunksByOrdinal orders chunks by their recorded ordinal, the replay
// order spec.md's S6 scenario requires regardless of the order they happen
// to appear in the ledger.
func sortChunksByOrdinal(chunks []telemetry.Event) {
	sort.SliceStable(chunks, func(i, j int) bool {
		oi, _ := asInt64(chunks[i].Note["ordinal"])
		oj, _ := asInt64(chunks[j].Note["ordinal"])
		return oi < oj
	})
}

// ReplayClock rebuilds a provider.Clock from the clock_ns_start/clock_ns_end
// values the Recorder stashed in every terminal event's Note, keyed the
// same way the Recorder derived them (2*step / 2*step+1), so a replayed
// edge observes exactly the nanosecond values the original run did.
func ReplayClock(events []telemetry.Event) *provider.ReplayClock {
	values := make(map[int64]int64, len(events)*2)
	for _, ev := range events {
		if ev.ParentStep == nil {
			continue
		}
		startedStep := *ev.ParentStep
		if startNS, ok := asInt64(ev.Note["clock_ns_start"]); ok {
			values[2*startedStep] = startNS
		}
		if endNS, ok := asInt64(ev.Note["clock_ns_end"]); ok {
			values[2*startedStep+1] = endNS
		}
	}
	return provider.NewReplayClock(values)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
