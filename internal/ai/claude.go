package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"apex-autofix/internal/logging"
)

// ClaudePlanner is a raw-HTTP client against the Anthropic Messages API,
// extended with tool_use/tool_result content blocks so it can drive the
// orchestrator's bounded tool-calling loop (spec.md §4.6 step 3). The wire
// shapes below follow Claude's public Messages API tool-use format.
type ClaudePlanner struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	usage   ProviderUsage
	usageMu sync.Mutex
}

// NewClaudePlanner constructs a planner client. ratePerMinute bounds
// outbound calls (generalizing the teacher's per-provider rate limiting
// into a single planner limiter).
func NewClaudePlanner(apiKey, model string, ratePerMinute int) *ClaudePlanner {
	if model == "" {
		model = "claude-opus-4-5-20251101"
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	return &ClaudePlanner{
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.anthropic.com/v1/messages",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute),
		usage:      ProviderUsage{Provider: ProviderClaude},
	}
}

// wire types for the Claude Messages API, including tool_use/tool_result
// content blocks.
type claudeContentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
}

type claudeWireMessage struct {
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type claudeRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	System    string              `json:"system,omitempty"`
	Messages  []claudeWireMessage `json:"messages"`
	Tools     []claudeTool        `json:"tools,omitempty"`
}

type claudeResponse struct {
	Content []claudeContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Plan sends one conversation turn to Claude with the fixed 3-tool
// declaration and returns either pending tool calls or a final answer.
func (c *ClaudePlanner) Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("planner rate limiter: %w", err)
	}

	wireReq := &claudeRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  toWireMessages(req.Messages),
		Tools:     toolDeclarations(),
	}
	if wireReq.MaxTokens == 0 {
		wireReq.MaxTokens = 2000
	}

	resp, err := c.send(ctx, wireReq)
	if err != nil {
		c.usageMu.Lock()
		c.usage.ErrorCount++
		c.usageMu.Unlock()
		return nil, err
	}

	c.usageMu.Lock()
	c.usage.RequestCount++
	c.usage.TotalTokens += int64(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	c.usage.LastUsed = time.Now()
	c.usageMu.Unlock()

	out := &PlanResponse{Usage: Usage{PromptTokens: resp.Usage.InputTokens, CompletionTokens: resp.Usage.OutputTokens}}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}
	return out, nil
}

func toWireMessages(msgs []Message) []claudeWireMessage {
	out := make([]claudeWireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := claudeWireMessage{Role: string(m.Role)}
		if m.Text != "" {
			wm.Content = append(wm.Content, claudeContentBlock{Type: "text", Text: m.Text})
		}
		for _, tc := range m.ToolCalls {
			wm.Content = append(wm.Content, claudeContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
		}
		if m.ToolResult != nil {
			payload, _ := json.Marshal(m.ToolResult.JSON)
			wm.Content = append(wm.Content, claudeContentBlock{Type: "tool_result", ToolUseID: m.ToolResult.ToolCallID, Content: string(payload)})
		}
		out = append(out, wm)
	}
	return out
}

func (c *ClaudePlanner) send(ctx context.Context, req *claudeRequest) (*claudeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal planner request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build planner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("planner request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read planner response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.S().Warnw("planner http error", "status", resp.StatusCode)
		return nil, fmt.Errorf("planner unavailable: status %d", resp.StatusCode)
	}

	var out claudeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode planner response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("planner error: %s", out.Error.Message)
	}
	return &out, nil
}

// GetUsage returns a copy of accumulated usage statistics.
func (c *ClaudePlanner) GetUsage() ProviderUsage {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	return c.usage
}
