// Package sandbox implements ExecutionSandbox (C2): compiles and executes
// restricted-subset Python source with wall-clock timeout enforcement,
// bounded output capture and variable snapshotting.
//
// Grounded on debugger_service.py's threading.Thread(daemon=True) +
// thread.join(timeout) model: the worker runs on its own goroutine, the
// caller waits up to timeout plus a short grace period, and if the worker
// is still running it is abandoned rather than forcibly killed (the design
// notes in spec.md §9 call this out explicitly as an accepted tradeoff of
// the in-process variant).
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"apex-autofix/internal/logging"
	"apex-autofix/internal/pyexec"
	"apex-autofix/internal/tracker"
)

const (
	maxOutputBytes = 10_000
	gracePeriod    = 500 * time.Millisecond
)

// ErrorKind classifies how/why a run failed, matching spec.md §3's tag set.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindSyntax      ErrorKind = "Syntax"
	KindRestriction ErrorKind = "Restriction"
	KindTimeout     ErrorKind = "Timeout"
	KindResource    ErrorKind = "ResourceLimit"
)

// RuntimeKind formats a Runtime(<NamedKind>) tag.
func RuntimeKind(name string) ErrorKind { return ErrorKind("Runtime(" + name + ")") }

// ExecutionResult is the C2 primary output shape (spec.md §3).
type ExecutionResult struct {
	Success       bool              `json:"success"`
	Output        string            `json:"output"`
	Error         string            `json:"error"`
	ErrorKind     ErrorKind         `json:"error_kind"`
	Variables     map[string]string `json:"variables"`
	ExecutionTime time.Duration     `json:"execution_time"`
	Timeout       bool              `json:"timeout"`
}

// StackFrame is one walked call frame in a TraceResult.
type StackFrame struct {
	Line       int
	FuncName   string
	CodeLines  []string // ±3 lines of source context around Line
	Variables  map[string]string
}

// TraceResult is the superset ExecutionResult returned by execute_with_trace.
type TraceResult struct {
	ExecutionResult
	StackFrames      []StackFrame
	ErrorLine        int
	ExecutionContext []string
}

// Sandbox runs compiled units under the timeout/grace-period policy.
type Sandbox struct {
	DefaultTimeout time.Duration
}

// New constructs a Sandbox with the given default timeout (seconds,
// clamped by the caller to [1, 30] per spec.md §6).
func New(defaultTimeoutSeconds int) *Sandbox {
	return &Sandbox{DefaultTimeout: time.Duration(defaultTimeoutSeconds) * time.Second}
}

type workerOutcome struct {
	err  error
	vars map[string]pyexec.Value
}

// runWorker compiles and executes source on its own goroutine, returning a
// channel the caller selects on alongside the deadline. The interpreter
// tracks its own step budget via ctx so a timed-out worker eventually stops
// consuming CPU even though the caller has already moved on.
func runWorker(ctx context.Context, source string, print pyexec.PrintHook, trace pyexec.TraceHook) (*pyexec.Program, chan workerOutcome, *pyexec.CompilationError) {
	prog, cerr := pyexec.Compile(source)
	if cerr != nil {
		return nil, nil, cerr
	}
	ch := make(chan workerOutcome, 1)
	go func() {
		in := pyexec.NewInterp(ctx)
		in.Print = print
		in.Trace = trace
		err := in.Run(prog)
		ch <- workerOutcome{err: err, vars: in.Global.Snapshot()}
	}()
	return prog, ch, nil
}

func clampTimeout(requested, def time.Duration) time.Duration {
	if requested <= 0 {
		return def
	}
	if requested < time.Second {
		return time.Second
	}
	if requested > 30*time.Second {
		return 30 * time.Second
	}
	return requested
}

// Execute runs source to completion or timeout, in simple mode (no tracing).
func (s *Sandbox) Execute(source string, timeout time.Duration) ExecutionResult {
	timeout = clampTimeout(timeout, s.DefaultTimeout)
	start := time.Now()

	var out strings.Builder
	print := func(line string) {
		if out.Len() < maxOutputBytes {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, ch, cerr := runWorker(ctx, source, print, nil)
	if cerr != nil {
		return compileErrorResult(cerr, start)
	}

	select {
	case outcome := <-ch:
		return finishResult(outcome, out.String(), start)
	case <-time.After(timeout):
		select {
		case outcome := <-ch:
			return finishResult(outcome, out.String(), start)
		case <-time.After(gracePeriod):
			logging.S().Errorw("sandbox worker did not terminate within grace period", "timeout", timeout)
			return ExecutionResult{
				Success:       false,
				Error:         "execution exceeded the configured timeout",
				ErrorKind:     KindTimeout,
				Timeout:       true,
				Variables:     map[string]string{},
				ExecutionTime: time.Since(start),
			}
		}
	}
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes]
}

func compileErrorResult(cerr *pyexec.CompilationError, start time.Time) ExecutionResult {
	kind := KindSyntax
	if cerr.Kind != pyexec.KindSyntax {
		kind = KindRestriction
	}
	return ExecutionResult{
		Success:       false,
		Error:         cerr.Reason,
		ErrorKind:     kind,
		Variables:     map[string]string{},
		ExecutionTime: time.Since(start),
	}
}

func finishResult(outcome workerOutcome, output string, start time.Time) ExecutionResult {
	vars := serializeVars(outcome.vars)
	if outcome.err == nil {
		return ExecutionResult{
			Success:       true,
			Output:        truncateOutput(output),
			Variables:     vars,
			ExecutionTime: time.Since(start),
		}
	}
	rerr, ok := outcome.err.(*pyexec.RuntimeError)
	if !ok {
		return ExecutionResult{
			Success:       false,
			Error:         outcome.err.Error(),
			ErrorKind:     ErrorKind("Runtime(Unknown)"),
			Variables:     vars,
			Output:        truncateOutput(output),
			ExecutionTime: time.Since(start),
		}
	}
	kind := RuntimeKind(rerr.Kind)
	if rerr.Kind == "Timeout" {
		kind = KindTimeout
	}
	if rerr.Kind == "ResourceError" {
		kind = KindResource
	}
	return ExecutionResult{
		Success:       false,
		Error:         rerr.Error(),
		ErrorKind:     kind,
		Timeout:       kind == KindTimeout,
		Variables:     vars,
		Output:        truncateOutput(output),
		ExecutionTime: time.Since(start),
	}
}

func serializeVars(vars map[string]pyexec.Value) map[string]string {
	out := make(map[string]string, len(vars))
	for name, v := range vars {
		if pyexec.SkipName(name) {
			continue
		}
		out[name] = pyexec.RedactIfSensitive(name, pyexec.Serialize(v))
	}
	return out
}

// ExecuteWithTrace runs source and, on failure, walks the live call stack
// captured at the point of the error, with ±3 source lines of context per
// frame and the frame-local serialized variables.
func (s *Sandbox) ExecuteWithTrace(source string, timeout time.Duration) TraceResult {
	timeout = clampTimeout(timeout, s.DefaultTimeout)
	start := time.Now()
	lines := strings.Split(source, "\n")

	var out strings.Builder
	print := func(line string) {
		if out.Len() < maxOutputBytes {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	prog, cerr := pyexec.Compile(source)
	if cerr != nil {
		return TraceResult{ExecutionResult: compileErrorResult(cerr, start)}
	}

	type traceOutcome struct {
		outcome   workerOutcome
		frames    []pyexec.Frame
		curLine   int
	}
	ch := make(chan traceOutcome, 1)
	go func() {
		in := pyexec.NewInterp(ctx)
		in.Print = print
		err := in.Run(prog)
		ch <- traceOutcome{outcome: workerOutcome{err: err, vars: in.Global.Snapshot()}, frames: in.CallStack, curLine: in.CurLine}
	}()

	select {
	case t := <-ch:
		res := finishResult(t.outcome, out.String(), start)
		tr := TraceResult{ExecutionResult: res}
		if res.Success {
			return tr
		}
		tr.ErrorLine = t.curLine
		tr.ExecutionContext = []string{fmt.Sprintf("failure at line %d: %s", t.curLine, res.Error)}
		tr.StackFrames = buildFrames(t.frames, t.curLine, lines, res.Variables)
		return tr
	case <-time.After(timeout):
		select {
		case t := <-ch:
			res := finishResult(t.outcome, out.String(), start)
			return TraceResult{ExecutionResult: res, ErrorLine: t.curLine}
		case <-time.After(gracePeriod):
			logging.S().Errorw("sandbox worker did not terminate within grace period (traced)", "timeout", timeout)
			return TraceResult{ExecutionResult: ExecutionResult{
				Success: false, Error: "execution exceeded the configured timeout",
				ErrorKind: KindTimeout, Timeout: true, Variables: map[string]string{}, ExecutionTime: time.Since(start),
			}}
		}
	}
}

func buildFrames(frames []pyexec.Frame, errLine int, srcLines []string, topVars map[string]string) []StackFrame {
	out := make([]StackFrame, 0, len(frames)+1)
	// innermost first
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		out = append(out, StackFrame{
			Line:      f.Line,
			FuncName:  f.FuncName,
			CodeLines: contextLines(srcLines, f.Line),
			Variables: serializeScope(f.Locals),
		})
	}
	out = append(out, StackFrame{
		Line:      errLine,
		FuncName:  "<module>",
		CodeLines: contextLines(srcLines, errLine),
		Variables: topVars,
	})
	return out
}

func serializeScope(sc *pyexec.Scope) map[string]string {
	if sc == nil {
		return map[string]string{}
	}
	return serializeVars(sc.Snapshot())
}

func contextLines(lines []string, line int) []string {
	lo, hi := line-4, line+3
	if lo < 0 {
		lo = 0
	}
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo >= hi {
		return nil
	}
	return append([]string(nil), lines[lo:hi]...)
}

// ExecuteWithTracking runs source one logical statement at a time,
// re-snapshotting the global-scope bindings into a Tracker after every
// executed statement, including those inside blocks and function bodies. On
// failure, all snapshots collected so far are returned alongside it.
func (s *Sandbox) ExecuteWithTracking(source string, timeout time.Duration, trk *tracker.Tracker) (ExecutionResult, []tracker.Snapshot, []tracker.Change) {
	timeout = clampTimeout(timeout, s.DefaultTimeout)
	start := time.Now()

	var out strings.Builder
	print := func(line string) {
		if out.Len() < maxOutputBytes {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	traceHook := func(line int, vars map[string]pyexec.Value) {
		trk.TrackLine(line, vars)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, ch, cerr := runWorker(ctx, source, print, traceHook)
	if cerr != nil {
		return compileErrorResult(cerr, start), trk.Snapshots(), trk.Changes()
	}

	select {
	case outcome := <-ch:
		res := finishResult(outcome, out.String(), start)
		return res, trk.Snapshots(), trk.Changes()
	case <-time.After(timeout):
		select {
		case outcome := <-ch:
			return finishResult(outcome, out.String(), start), trk.Snapshots(), trk.Changes()
		case <-time.After(gracePeriod):
			logging.S().Errorw("sandbox worker did not terminate within grace period (tracking)", "timeout", timeout)
			return ExecutionResult{
				Success: false, Error: "execution exceeded the configured timeout",
				ErrorKind: KindTimeout, Timeout: true, Variables: map[string]string{}, ExecutionTime: time.Since(start),
			}, trk.Snapshots(), trk.Changes()
		}
	}
}
