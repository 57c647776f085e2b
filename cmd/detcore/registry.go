package main

import (
	"context"
	"fmt"
	"os"

	"github.com/detcore/detcore/internal/adapter"
	"github.com/detcore/detcore/internal/adapter/anthropic"
	"github.com/detcore/detcore/internal/adapter/echo"
	"github.com/detcore/detcore/internal/telemetry"
)

// defaultAnthropicModel is used when ANTHROPIC_MODEL is unset.
const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// newAdapter constructs the named framework adapter wired to edges. "echo"
// is the minimal contract-compliant reference adapter spec.md's C8
// requires every implementation to provide; "anthropic" is a real
// model.Client-backed adapter for exercising C8 against a live provider.
// Other framework integrations (Copilot-style coding agents, issue
// triagers, etc.) implement the same adapter.Adapter interface out of
// tree.
func newAdapter(framework string, bus telemetry.Bus, edges adapter.EdgeRunner, agentID string) (adapter.Adapter, error) {
	switch framework {
	case "echo", "":
		return &echo.Adapter{
			Bus: bus, Edges: edges, AgentID: agentID,
			Respond: func(ctx context.Context, prompt string) (string, error) {
				return "hi", nil
			},
		}, nil
	case "anthropic":
		model := os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = defaultAnthropicModel
		}
		return anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), model, bus, edges, agentID)
	default:
		return nil, fmt.Errorf("unknown framework %q (known: echo, anthropic)", framework)
	}
}
