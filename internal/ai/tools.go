package ai

// toolDeclarations returns the fixed 3-tool schema the planner is
// constrained to, matching spec.md §6's Tool ABI and the shape of
// tools_service.py's get_tool_declarations (Gemini FunctionDeclaration,
// here expressed as Claude's input_schema JSON Schema).
func toolDeclarations() []claudeTool {
	return []claudeTool{
		{
			Name:        "execute_code",
			Description: "Run Python source in the diagnostic sandbox and return structured execution results.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "string", "description": "Python source to execute"},
					"timeout": map[string]interface{}{"type": "integer", "description": "Timeout in seconds, 1-30"},
				},
				"required": []string{"code"},
			},
		},
		{
			Name:        "validate_syntax",
			Description: "Check whether Python source parses, without executing it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code": map[string]interface{}{"type": "string", "description": "Python source to validate"},
				},
				"required": []string{"code"},
			},
		},
		{
			Name:        "search_memory",
			Description: "Search past fixes for a similar error and code, ranked by similarity and historical success rate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"error_type": map[string]interface{}{"type": "string"},
					"code":       map[string]interface{}{"type": "string"},
					"k":          map[string]interface{}{"type": "integer"},
				},
				"required": []string{"error_type"},
			},
		},
	}
}
