package ai

import "testing"

func TestToolDeclarationsExposesExactlyThreeTools(t *testing.T) {
	tools := toolDeclarations()
	if len(tools) != 3 {
		t.Fatalf("expected exactly 3 tools, got %d", len(tools))
	}
	names := map[string]bool{}
	for _, tl := range tools {
		names[tl.Name] = true
	}
	for _, want := range []string{"execute_code", "validate_syntax", "search_memory"} {
		if !names[want] {
			t.Fatalf("missing expected tool %q in declarations", want)
		}
	}
}

func TestToWireMessagesTranslatesToolCallsAndResults(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Text: "fix this"},
		{Role: RoleAssistant, Text: "let me check", ToolCalls: []ToolCall{
			{ID: "call-1", Name: "validate_syntax", Arguments: map[string]interface{}{"code": "print(1)"}},
		}},
		{Role: RoleUser, ToolResult: &ToolResult{ToolCallID: "call-1", Name: "validate_syntax", JSON: map[string]interface{}{"valid": true}}},
	}

	wire := toWireMessages(msgs)
	if len(wire) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(wire))
	}
	if wire[1].Content[len(wire[1].Content)-1].Type != "tool_use" {
		t.Fatalf("expected the assistant turn to carry a tool_use block")
	}
	if wire[2].Content[0].Type != "tool_result" {
		t.Fatalf("expected the final turn to carry a tool_result block")
	}
	if wire[2].Content[0].ToolUseID != "call-1" {
		t.Fatalf("tool_use_id = %q, want call-1", wire[2].Content[0].ToolUseID)
	}
}

func TestNewClaudePlannerAppliesDefaults(t *testing.T) {
	p := NewClaudePlanner("key", "", 0)
	if p.model == "" {
		t.Fatalf("expected a default model to be applied")
	}
	if p.limiter == nil {
		t.Fatalf("expected a rate limiter to be constructed")
	}
}
