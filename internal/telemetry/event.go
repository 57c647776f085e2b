// Package telemetry implements the structured event schema, redaction, and
// persistent JSONL sink shared by every adapter edge. It is the single
// writer per run: step assignment, span correlation, and sink writes all
// flow through one Bus instance so that observed order always equals causal
// order (see the Recorder and Replay Engine, which consult the Bus for
// every edge).
package telemetry

// Type enumerates the event taxonomy every edge and adapter lifecycle phase
// emits. It is a closed set: only the constants below are emitted.
type Type string

const (
	TypeAgentStart        Type = "agent_start"
	TypeAgentStop         Type = "agent_stop"
	TypeLLMCallStarted    Type = "llm_call.started"
	TypeLLMCallChunk      Type = "llm_call.chunk"
	TypeLLMCallFinished   Type = "llm_call.finished"
	TypeToolCallStarted   Type = "tool_call.started"
	TypeToolCallFinished  Type = "tool_call.finished"
	TypeSandboxStarted    Type = "sandbox_exec.started"
	TypeSandboxFinished   Type = "sandbox_exec.finished"
	TypeVCSAction         Type = "vcs_action"
	TypeCheckpoint        Type = "checkpoint"
	TypeAdapterError      Type = "adapter_error"
	TypeReplayAssert      Type = "replay_assert"
	TypeRecordingNote     Type = "recording_note"
	TypePolicyViolation   Type = "policy_violation"
)

// EdgeKind identifies which nondeterministic I/O surface an event concerns.
type EdgeKind string

const (
	EdgeLLM     EdgeKind = "llm"
	EdgeTool    EdgeKind = "tool"
	EdgeSandbox EdgeKind = "sandbox"
	EdgeVCS     EdgeKind = "vcs"
)

// Payload is a small inline event payload or a redaction marker. Exactly
// one of Inline or Redacted is meaningful at a time: once the redactor has
// scrubbed a payload, Inline is cleared and Redacted is set so callers
// cannot accidentally persist the original value.
type Payload struct {
	Inline   map[string]any `json:"inline,omitempty"`
	Redacted bool           `json:"redacted,omitempty"`
	Kind     string         `json:"kind,omitempty"`
}

// Event is the append-only record written to a run's JSONL ledger. Once
// constructed and assigned a Step by the Bus, an Event is never mutated.
type Event struct {
	RunID     string   `json:"run_id"`
	Framework string   `json:"framework"`
	AgentID   string   `json:"agent_id"`
	TaskID    string   `json:"task_id"`

	Step       int64  `json:"step"`
	ParentStep *int64 `json:"parent_step,omitempty"`
	CallIndex  int64  `json:"call_index,omitempty"`

	TS int64 `json:"ts"` // ISO-8601-equivalent unix millis; excluded from determinism checks

	Type     Type     `json:"type"`
	EdgeKind EdgeKind `json:"edge_kind,omitempty"`

	Model string `json:"model,omitempty"`
	Seed  int64  `json:"seed,omitempty"`

	ToolOrModelName string `json:"tool_or_model_name,omitempty"`

	InputsFingerprint string `json:"inputs_fingerprint,omitempty"`
	ResultRef         string `json:"result_ref,omitempty"`

	DurationMS   int64   `json:"duration_ms,omitempty"`
	TokenIn      int64   `json:"token_in,omitempty"`
	TokenOut     int64   `json:"token_out,omitempty"`
	CostEstimate float64 `json:"cost_estimate,omitempty"`

	Payload Payload `json:"payload"`

	// Note augments replay_assert/policy_violation/adapter_error events with
	// a short, structured explanation (reason, severity, offending path).
	Note map[string]any `json:"note,omitempty"`
}

// LookupKey returns the ReplayLookupKey tuple this event's edge identifies,
// for *.started events only. It is the identity the Replay Engine indexes
// recordings by.
type LookupKey struct {
	EdgeKind        EdgeKind
	AgentID         string
	ToolOrModelName string
	CallIndex       int64
	InputsFP        string
}

// Key derives this event's ReplayLookupKey. Callers should only call Key on
// *.started events; it is meaningless for chunk/finished/lifecycle events.
func (e Event) Key() LookupKey {
	return LookupKey{
		EdgeKind:        e.EdgeKind,
		AgentID:         e.AgentID,
		ToolOrModelName: e.ToolOrModelName,
		CallIndex:       e.CallIndex,
		InputsFP:        e.InputsFingerprint,
	}
}

// IsStarted reports whether t is one of the "*.started" lifecycle events
// that requires a matching "*.finished" or adapter_error with the same step.
func (t Type) IsStarted() bool {
	switch t {
	case TypeLLMCallStarted, TypeToolCallStarted, TypeSandboxStarted:
		return true
	default:
		return false
	}
}

// Finished returns the "*.finished" counterpart of a "*.started" type, and
// false if t is not a started type.
func (t Type) Finished() (Type, bool) {
	switch t {
	case TypeLLMCallStarted:
		return TypeLLMCallFinished, true
	case TypeToolCallStarted:
		return TypeToolCallFinished, true
	case TypeSandboxStarted:
		return TypeSandboxFinished, true
	default:
		return "", false
	}
}
