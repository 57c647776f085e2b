// Package anthropic is a C8 adapter backed by a real model.Client instead
// of a fixed stub, so the Anthropic Claude client kept from the teacher
// (features/model/anthropic) is genuinely exercised by the record/replay
// path rather than only referenced in a comment: every call goes through
// internal/adapter/llm.Client, picking up canonicalization, call_index
// assignment, and replay lookup exactly like echo's single LLM edge does.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	anthropicClient "github.com/detcore/detcore/features/model/anthropic"
	"github.com/detcore/detcore/runtime/agent/model"

	"github.com/detcore/detcore/internal/adapter"
	"github.com/detcore/detcore/internal/adapter/llm"
	"github.com/detcore/detcore/internal/telemetry"
)

// Adapter runs one task as a single Claude completion over the prompt in
// task.Spec["prompt"], mirroring echo.Adapter's agent_start + one-LLM-edge
// shape but against a live provider instead of a canned reply.
type Adapter struct {
	Bus     telemetry.Bus
	Model   *llm.Client
	AgentID string

	cfg    adapter.Config
	mu     sync.Mutex
	events []telemetry.Event
	sub    telemetry.Subscription
}

// New builds an Adapter backed by a real Anthropic Messages client. apiKey
// and defaultModel are required; defaultModel should be one of the
// anthropic-sdk-go Model constants (for example
// string(sdk.ModelClaudeSonnet4_5_20250929)).
func New(apiKey, defaultModel string, bus telemetry.Bus, edges adapter.EdgeRunner, agentID string) (*Adapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: ANTHROPIC_API_KEY is required")
	}
	inner, err := anthropicClient.NewFromAPIKey(apiKey, defaultModel)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return &Adapter{
		Bus:     bus,
		Model:   &llm.Client{Inner: inner, Edges: edges, AgentID: agentID},
		AgentID: agentID,
	}, nil
}

// Configure implements adapter.Adapter.
func (a *Adapter) Configure(cfg adapter.Config) error {
	a.cfg = cfg
	a.sub = a.Bus.Subscribe(telemetry.SubscriberFunc(func(ctx context.Context, e telemetry.Event) error {
		a.mu.Lock()
		a.events = append(a.events, e)
		a.mu.Unlock()
		return nil
	}))
	return nil
}

// RunTask implements adapter.Adapter: emit agent_start, then complete the
// prompt through the wrapped model.Client so the llm_call.started/chunk/
// finished sequence is produced by internal/recorder or internal/replay,
// never by this adapter directly.
func (a *Adapter) RunTask(ctx context.Context, task adapter.Task) (adapter.RunResult, error) {
	prompt, _ := task.Spec["prompt"].(string)

	if _, err := a.Bus.Emit(ctx, telemetry.Event{AgentID: a.AgentID, Type: telemetry.TypeAgentStart, TaskID: task.ID}); err != nil {
		return adapter.RunResult{Status: "adapter_error"}, fmt.Errorf("anthropic: emit agent_start: %w", err)
	}

	req := &model.Request{
		Messages: []*model.Message{{
			Role:  model.ConversationRoleUser,
			Parts: []model.Part{model.TextPart{Text: prompt}},
		}},
	}
	resp, err := a.Model.Complete(ctx, req)
	if err != nil {
		return adapter.RunResult{Status: "adapter_error"}, err
	}

	return adapter.RunResult{Status: "ok", ExitCode: 0, Summary: firstText(resp)}, nil
}

// Events implements adapter.Adapter.
func (a *Adapter) Events() []telemetry.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]telemetry.Event, len(a.events))
	copy(out, a.events)
	return out
}

func firstText(resp *model.Response) string {
	if resp == nil {
		return ""
	}
	for _, msg := range resp.Content {
		for _, p := range msg.Parts {
			if t, ok := p.(model.TextPart); ok {
				return t.Text
			}
		}
	}
	return ""
}
