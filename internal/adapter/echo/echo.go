// Package echo implements the minimal reference Adapter used by spec.md's
// S1 scenario ("echo-hello"): one LLM call, prompt "say hi", response
// "hi". It exists to exercise the Recorder/Replay contract end to end and
// as a template real framework adapters can follow.
package echo

import (
	"context"
	"fmt"
	"sync"

	"github.com/detcore/detcore/internal/adapter"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/telemetry"
)

// Adapter performs exactly one LLM edge per task, through whatever
// EdgeRunner (record or replay) it is constructed with.
type Adapter struct {
	Bus     telemetry.Bus
	Edges   adapter.EdgeRunner
	AgentID string

	// Respond computes the model's reply for a prompt. The caller supplies
	// it: the detcore CLI wires a canned reply, and tests pass stubs.
	Respond func(ctx context.Context, prompt string) (string, error)

	cfg Config

	mu     sync.Mutex
	events []telemetry.Event
	sub    telemetry.Subscription
}

// Config narrows adapter.Config to what the echo adapter actually reads.
type Config = adapter.Config

// Configure implements adapter.Adapter. It subscribes to the Bus so
// Events() can return the full run event stream, not just what this
// adapter emitted directly.
func (a *Adapter) Configure(cfg Config) error {
	a.cfg = cfg
	a.sub = a.Bus.Subscribe(telemetry.SubscriberFunc(func(ctx context.Context, e telemetry.Event) error {
		a.mu.Lock()
		a.events = append(a.events, e)
		a.mu.Unlock()
		return nil
	}))
	return nil
}

// RunTask implements adapter.Adapter: it emits agent_start and performs one
// LLM edge for the task's prompt, matching spec.md S1's exact three-event
// sequence (agent_start, llm_call.started, llm_call.finished) for the
// success path.
func (a *Adapter) RunTask(ctx context.Context, task adapter.Task) (adapter.RunResult, error) {
	prompt, _ := task.Spec["prompt"].(string)

	if _, err := a.Bus.Emit(ctx, telemetry.Event{AgentID: a.AgentID, Type: telemetry.TypeAgentStart, TaskID: task.ID}); err != nil {
		return adapter.RunResult{Status: "adapter_error"}, fmt.Errorf("echo: emit agent_start: %w", err)
	}

	edge := recorder.Edge{AgentID: a.AgentID, EdgeKind: telemetry.EdgeLLM, Name: "echo-model"}
	result, runErr := a.Edges.Do(ctx, edge, map[string]any{"prompt": prompt}, func(ctx context.Context) (any, error) {
		reply, err := a.Respond(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return map[string]any{"text": reply}, nil
	})
	if runErr != nil {
		return adapter.RunResult{Status: "adapter_error"}, runErr
	}

	text, _ := result.Output.(map[string]any)["text"].(string)
	return adapter.RunResult{Status: "ok", ExitCode: 0, Summary: text}, nil
}

// Events implements adapter.Adapter.
func (a *Adapter) Events() []telemetry.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]telemetry.Event, len(a.events))
	copy(out, a.events)
	return out
}
