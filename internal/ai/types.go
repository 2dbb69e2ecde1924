// Package ai implements the planner client used by the HybridFixOrchestrator's
// AI tool-calling loop: a single external LLM provider (Claude, via the raw
// Messages API) constrained to the three declared tools.
package ai

import "time"

// AIProvider identifies the planner's backing LLM provider.
type AIProvider string

const ProviderClaude AIProvider = "claude"

// PlanRequest is one turn of the bounded planner conversation.
type PlanRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
}

// Role is a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation, optionally carrying tool calls
// (from the assistant) or tool results (from the user/tool side).
type Message struct {
	Role       Role
	Text       string
	ToolCalls  []ToolCall   // populated on assistant turns that invoke tools
	ToolResult *ToolResult  // populated on the turn responding to a ToolCall
}

// ToolCall is the planner's request to invoke one of the three declared
// tools, matching the Tool ABI in SPEC_FULL.md / spec.md §6.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolResult carries a tool's structured JSON output back to the planner.
type ToolResult struct {
	ToolCallID string
	Name       string
	JSON       map[string]interface{}
}

// PlanResponse is what one planner turn produced: either more tool calls to
// dispatch, or a final textual answer (from which the orchestrator extracts
// a fenced code block per spec.md §4.6 step 3).
type PlanResponse struct {
	ToolCalls []ToolCall
	Text      string
	Usage     Usage
}

// Usage tracks token accounting for one planner turn.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ProviderUsage accumulates usage across the life of a Planner client.
type ProviderUsage struct {
	Provider     AIProvider
	RequestCount int64
	TotalTokens  int64
	ErrorCount   int64
	LastUsed     time.Time
}
