package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"apex-autofix/internal/ai"
	"apex-autofix/internal/cache"
	"apex-autofix/internal/logging"
	"apex-autofix/internal/memory"
	"apex-autofix/internal/pyexec"
	"apex-autofix/internal/rules"
	"apex-autofix/internal/sandbox"
)

const defaultMaxIterations = 5
const defaultPlannerMaxTokens = 2000

// Planner is the subset of ai.ClaudePlanner the orchestrator depends on,
// so tests can substitute a fake without a live API key.
type Planner interface {
	Plan(ctx context.Context, req ai.PlanRequest) (*ai.PlanResponse, error)
}

// Orchestrator is HybridFixOrchestrator (C6).
type Orchestrator struct {
	Rules         *rules.Registry
	Cache         *cache.FixCache
	Memory        *memory.Memory
	Sandbox       *sandbox.Sandbox
	Planner       Planner
	MaxIterations int
}

// New wires the six-component pipeline behind a single Fix entry point.
func New(rulesReg *rules.Registry, fixCache *cache.FixCache, mem *memory.Memory, sb *sandbox.Sandbox, planner Planner) *Orchestrator {
	return &Orchestrator{
		Rules: rulesReg, Cache: fixCache, Memory: mem, Sandbox: sb, Planner: planner,
		MaxIterations: defaultMaxIterations,
	}
}

// Fix runs the full strategy ordering: RuleAttempt -> CacheLookup ->
// PlannerTurn(<->ToolDispatch) -> Validate -> Done, with terminal Fallback.
func (o *Orchestrator) Fix(ctx context.Context, source string, declaredError string) FixArtifact {
	start := time.Now()
	correlationID := uuid.NewString()
	errText := declaredError
	kind := DetectKind(declaredError)
	if kind == KindUnknown {
		if detected, ok := o.detectFromExecution(source); ok {
			kind = detected.kind
			if errText == "" {
				errText = detected.text
			}
		}
	}
	logger := logging.S().With("correlation_id", correlationID, "error_kind", string(kind))

	// 1. Rule handlers.
	if o.Rules != nil {
		if fixed, applied := o.Rules.Attempt(source, errText); applied {
			if o.validates(fixed) {
				logger.Infow("fix applied", "method", string(MethodRule))
				art := FixArtifact{
					CorrelationID: correlationID,
					Success:       true, Original: source, Fixed: fixed, ErrorKind: kind,
					Method: MethodRule, Changes: []Change{{Description: "rule handler applied", Method: MethodRule}},
					ExecutionTime: time.Since(start),
				}
				o.storeInCache(source, errText, art)
				return art
			}
		}
	}

	// 2. Cache lookup.
	if o.Cache != nil {
		if entry, hit := o.Cache.Get(source, errText); hit {
			var cached FixArtifact
			if err := json.Unmarshal(entry.Result, &cached); err == nil {
				cached.CorrelationID = correlationID
				cached.CacheHit = true
				cached.Method = MethodCache
				cached.ExecutionTime = time.Since(start)
				logger.Infow("fix applied", "method", string(MethodCache))
				return cached
			} else {
				logger.Warnw("fix cache entry failed to decode, ignoring", "error", err)
			}
		}
	}

	// 3 & 4. AI planner loop + validation.
	if o.Planner != nil {
		if art, ok := o.runPlannerLoop(ctx, source, errText, kind, start); ok {
			art.CorrelationID = correlationID
			o.storeInCache(source, errText, art)
			o.storeInMemory(source, errText, art)
			logger.Infow("fix applied", "method", string(MethodAI))
			return art
		}
	}

	// 5. Fallback.
	logger.Infow("fix fell back", "method", string(MethodFallback))
	return FixArtifact{
		CorrelationID: correlationID,
		Success:       false, Original: source, ErrorKind: kind, Method: MethodFallback,
		Explanation:   "automatic repair was not possible for this input",
		Suggestions:   suggestionsFor(kind),
		ExecutionTime: time.Since(start),
	}
}

type detectedError struct {
	kind ErrorKind
	text string
}

// detectFromExecution runs source once to surface a runtime/compile error
// when the caller did not declare one, so rule selection and error-kind
// reporting still work on bare (source)-only calls.
func (o *Orchestrator) detectFromExecution(source string) (detectedError, bool) {
	if o.Sandbox == nil {
		return detectedError{}, false
	}
	res := o.Sandbox.Execute(source, 5*time.Second)
	if res.Success {
		return detectedError{}, false
	}
	text := string(res.ErrorKind) + ": " + res.Error
	if res.ErrorKind == sandbox.KindSyntax {
		text = "SyntaxError: " + res.Error
	}
	return detectedError{kind: DetectKind(text), text: text}, true
}

// validates recompiles a candidate fix via SafeCompiler (C1); it is the
// only gate an accepted fix must pass regardless of which strategy
// produced it (spec.md §8).
func (o *Orchestrator) validates(source string) bool {
	_, cerr := pyexec.Compile(source)
	return cerr == nil
}

func (o *Orchestrator) storeInCache(source, errText string, art FixArtifact) {
	if o.Cache == nil {
		return
	}
	raw, err := json.Marshal(art)
	if err != nil {
		return
	}
	if err := o.Cache.Set(source, errText, raw); err != nil {
		logging.S().Warnw("failed to store fix in cache", "error", err)
	}
}

func (o *Orchestrator) storeInMemory(source, errText string, art FixArtifact) {
	if o.Memory == nil || !art.Success {
		return
	}
	if _, err := o.Memory.Store(source, string(art.ErrorKind), art.Fixed, string(art.Method), map[string]string{"error_text": errText}); err != nil {
		logging.S().Warnw("failed to store fix in memory", "error", err)
	}
}

const systemPrompt = `You are a Python auto-fix planner. You are given source code and an ` +
	`error. Use the available tools to execute code, validate syntax, and search past fixes. ` +
	`When confident, respond with your final answer containing a single fenced Python code block ` +
	`holding the complete corrected source.`

// runPlannerLoop drives the bounded tool-calling conversation (spec.md
// §4.6 step 3), dispatching at most MaxIterations turns.
func (o *Orchestrator) runPlannerLoop(ctx context.Context, source, errText string, kind ErrorKind, start time.Time) (FixArtifact, bool) {
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	messages := []ai.Message{{
		Role: ai.RoleUser,
		Text: fmt.Sprintf("Source:\n```python\n%s\n```\nError: %s", source, errText),
	}}

	for iter := 0; iter < maxIter; iter++ {
		resp, err := o.Planner.Plan(ctx, ai.PlanRequest{SystemPrompt: systemPrompt, Messages: messages, MaxTokens: defaultPlannerMaxTokens})
		if err != nil {
			logging.S().Warnw("planner unavailable", "error", err)
			return FixArtifact{}, false
		}

		if len(resp.ToolCalls) == 0 {
			candidate := extractCodeBlock(resp.Text)
			if candidate == "" {
				return FixArtifact{}, false
			}
			if !o.validates(candidate) {
				messages = append(messages,
					ai.Message{Role: ai.RoleAssistant, Text: resp.Text},
					ai.Message{Role: ai.RoleUser, Text: "That code does not compile. Please try again."},
				)
				continue
			}
			return FixArtifact{
				Success: true, Original: source, Fixed: candidate, ErrorKind: kind,
				Method:        MethodAI,
				Changes:       []Change{{Description: "ai planner produced a fix", Method: MethodAI}},
				ExecutionTime: time.Since(start),
			}, true
		}

		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			result := o.dispatchTool(tc)
			messages = append(messages, ai.Message{Role: ai.RoleUser, ToolResult: &ai.ToolResult{ToolCallID: tc.ID, Name: tc.Name, JSON: result}})
		}
	}
	return FixArtifact{}, false
}

// dispatchTool executes one planner tool call against C1/C2/C5. Any
// dispatch-time panic becomes a structured error result rather than an
// uncaught failure, per spec.md §4.6 Failure semantics.
func (o *Orchestrator) dispatchTool(tc ai.ToolCall) (result map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			result = map[string]interface{}{"success": false, "error": fmt.Sprintf("tool panicked: %v", r)}
		}
	}()
	switch tc.Name {
	case "execute_code":
		return o.toolExecuteCode(tc.Arguments)
	case "validate_syntax":
		return o.toolValidateSyntax(tc.Arguments)
	case "search_memory":
		return o.toolSearchMemory(tc.Arguments)
	default:
		return map[string]interface{}{"success": false, "error": "Unknown tool"}
	}
}

func (o *Orchestrator) toolExecuteCode(args map[string]interface{}) map[string]interface{} {
	code, _ := args["code"].(string)
	timeout := 5 * time.Second
	if t, ok := args["timeout"].(float64); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	}
	if o.Sandbox == nil {
		return map[string]interface{}{"success": false, "error": "sandbox unavailable"}
	}
	res := o.Sandbox.Execute(code, timeout)
	raw, _ := json.Marshal(res)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	out["debug_summary"] = ai.FormatDebugResult(out)
	return out
}

func (o *Orchestrator) toolValidateSyntax(args map[string]interface{}) map[string]interface{} {
	code, _ := args["code"].(string)
	_, cerr := pyexec.Compile(code)
	if cerr == nil {
		return map[string]interface{}{"valid": true}
	}
	return map[string]interface{}{"valid": false, "line": cerr.Line, "message": cerr.Reason}
}

func (o *Orchestrator) toolSearchMemory(args map[string]interface{}) map[string]interface{} {
	errorType, _ := args["error_type"].(string)
	code, _ := args["code"].(string)
	k := 3
	if kf, ok := args["k"].(float64); ok && kf > 0 {
		k = int(kf)
	}
	if o.Memory == nil {
		return map[string]interface{}{"success": false, "error": "memory unavailable"}
	}
	records, err := o.Memory.SearchSimilar(code, errorType, k)
	if err != nil {
		return map[string]interface{}{"success": false, "error": "memory search failed"}
	}
	results := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		results = append(results, map[string]interface{}{"id": r.ID, "fixed": r.Fixed, "method": r.Method})
	}
	return map[string]interface{}{"success": true, "count": len(results), "results": results}
}

var fencedCodeBlock = regexp.MustCompile("(?s)```(?:python)?\\n?(.*?)```")

// extractCodeBlock pulls the first fenced code block out of the planner's
// final text, grounded on the teacher's fence-stripping JSON response
// parsing technique. Falls back to the raw trimmed text when no fence is
// present, per spec.md §4.6 step 3.
func extractCodeBlock(text string) string {
	if m := fencedCodeBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
