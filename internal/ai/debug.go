package ai

import (
	"fmt"
	"sort"
	"strings"
)

// FormatDebugResult renders a tool's structured execution JSON into a
// compact human-readable summary the planner prompt can carry alongside
// the raw result, matching tools_service.py's _format_debug_result: on
// success a short confirmation, on failure the error kind/line/message and
// a sorted variable-state listing.
func FormatDebugResult(result map[string]interface{}) string {
	success, _ := result["success"].(bool)
	if success {
		var out string
		if output, ok := result["output"].(string); ok && output != "" {
			out = strings.TrimSuffix(output, "\n")
		}
		if out == "" {
			return "execution succeeded with no output"
		}
		return "execution succeeded, output: " + out
	}

	var b strings.Builder
	b.WriteString("execution failed")
	if kind, ok := result["error_kind"].(string); ok && kind != "" {
		fmt.Fprintf(&b, " (%s)", kind)
	}
	if line, ok := result["error_line"].(float64); ok && line > 0 {
		fmt.Fprintf(&b, " at line %d", int(line))
	}
	if msg, ok := result["error"].(string); ok && msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}

	if vars, ok := result["variables"].(map[string]interface{}); ok && len(vars) > 0 {
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\nvariables at failure:")
		for _, name := range names {
			fmt.Fprintf(&b, "\n  %s = %v", name, vars[name])
		}
	}
	return b.String()
}
