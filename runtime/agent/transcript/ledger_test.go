package transcript

import (
	"testing"

	"github.com/detcore/detcore/runtime/agent/model"
)

func TestValidateBedrockAcceptsThinkingBeforeToolUse(t *testing.T) {
	msgs := []*model.Message{
		{
			Role: model.ConversationRoleAssistant,
			Parts: []model.Part{
				model.ThinkingPart{Text: "let me think", Signature: "sig", Final: true},
				model.TextPart{Text: "calling tool"},
				model.ToolUsePart{ID: "tu1", Name: "search_assets", Input: map[string]any{"q": "pump"}},
			},
		},
		{
			Role:  model.ConversationRoleUser,
			Parts: []model.Part{model.ToolResultPart{ToolUseID: "tu1", Content: map[string]any{"ok": true}}},
		},
	}
	if err := ValidateBedrock(msgs, true); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

func TestValidateBedrockAcceptsMultipleToolUseInOneUserMessage(t *testing.T) {
	msgs := []*model.Message{
		{
			Role: model.ConversationRoleAssistant,
			Parts: []model.Part{
				model.ThinkingPart{Text: "thinking", Signature: "sig", Final: true},
				model.ToolUsePart{ID: "tu1", Name: "tool_one", Input: map[string]any{"x": 1}},
				model.ToolUsePart{ID: "tu2", Name: "tool_two", Input: map[string]any{"y": 2}},
			},
		},
		{
			Role: model.ConversationRoleUser,
			Parts: []model.Part{
				model.ToolResultPart{ToolUseID: "tu1", Content: map[string]any{"ok": true}},
				model.ToolResultPart{ToolUseID: "tu2", Content: map[string]any{"ok": true}},
			},
		},
	}
	if err := ValidateBedrock(msgs, true); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

func TestValidateBedrockRejectsToolUseWithoutLeadingThinking(t *testing.T) {
	msgs := []*model.Message{
		{
			Role: model.ConversationRoleAssistant,
			Parts: []model.Part{
				model.TextPart{Text: "calling tool"},
				model.ToolUsePart{ID: "tu1", Name: "search_assets"},
			},
		},
		{
			Role:  model.ConversationRoleUser,
			Parts: []model.Part{model.ToolResultPart{ToolUseID: "tu1"}},
		},
	}
	if err := ValidateBedrock(msgs, true); err == nil {
		t.Fatal("expected error when assistant tool_use does not start with thinking")
	}
}

func TestValidateBedrockRejectsMissingUserToolResult(t *testing.T) {
	msgs := []*model.Message{
		{
			Role: model.ConversationRoleAssistant,
			Parts: []model.Part{
				model.ThinkingPart{Text: "thinking", Final: true},
				model.ToolUsePart{ID: "tu1", Name: "search_assets"},
			},
		},
		{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "oops"}}},
	}
	if err := ValidateBedrock(msgs, true); err == nil {
		t.Fatal("expected error when tool_use is not followed by a user tool_result message")
	}
}

func TestValidateBedrockRejectsUnmatchedToolResultID(t *testing.T) {
	msgs := []*model.Message{
		{
			Role: model.ConversationRoleAssistant,
			Parts: []model.Part{
				model.ThinkingPart{Text: "thinking", Final: true},
				model.ToolUsePart{ID: "tu1", Name: "search_assets"},
			},
		},
		{
			Role:  model.ConversationRoleUser,
			Parts: []model.Part{model.ToolResultPart{ToolUseID: "does-not-match"}},
		},
	}
	if err := ValidateBedrock(msgs, true); err == nil {
		t.Fatal("expected error for a tool_result id with no matching tool_use")
	}
}
