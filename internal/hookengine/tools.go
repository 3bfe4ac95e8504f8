package hookengine

// ToolKind classifies a tool for gating purposes (design doc §4.5.2, §9
// "Dynamic tool dispatch"). Generalizes the teacher's rule-table
// approach (internal/engine/builtin.go) from "match a rule" to "classify
// a tool kind" — a lookup table plus, for mutating tools, a path
// extractor, rather than inheritance or a type switch per tool.
type ToolKind int

const (
	ToolUnknown ToolKind = iota
	ToolSafe
	ToolMutating
)

// toolTable is the single source of truth for tool classification. New
// governed tools are added here — and, if they're path-bearing under a
// key other than "path", get handled in extractPath — with no other
// component needing to change (design doc §9 "Extensibility").
var toolTable = map[string]ToolKind{
	"read_file":                   ToolSafe,
	"list_files":                  ToolSafe,
	"list_code_definition_names":  ToolSafe,
	"search_files":                ToolSafe,
	"browser_action":              ToolSafe,
	"ask_followup_question":       ToolSafe,
	"attempt_completion":          ToolSafe,

	"write_to_file":      ToolMutating,
	"apply_diff":         ToolMutating,
	"insert_content":     ToolMutating,
	"search_and_replace": ToolMutating,
	"execute_command":    ToolMutating,
}

// toolsWithoutPath are mutating tools whose target cannot be statically
// attributed to a single workspace path (design doc §4.5.2 note on
// execute_command). Scope and freshness checks are skipped for these;
// an active intent is still required.
var toolsWithoutPath = map[string]bool{
	"execute_command": true,
}

// classifyTool reports the ToolKind for name. Unrecognized tools are
// ToolUnknown, which the pre-hook treats as mutating (fail closed: an
// unclassified tool is assumed capable of mutating the workspace until
// someone extends toolTable to say otherwise).
func classifyTool(name string) ToolKind {
	if kind, ok := toolTable[name]; ok {
		return kind
	}
	return ToolUnknown
}

// requiresPathCheck reports whether scope/freshness gating applies to
// this mutating tool.
func requiresPathCheck(tool string) bool {
	return !toolsWithoutPath[tool]
}

// extractPath pulls the workspace-relative target path out of a tool
// call's params, per design doc §4.5.2 ("extract the target path from
// params.path"). Every path-bearing mutating tool uses the same "path"
// argument key; if that ever stops being true for some new tool, add a
// per-tool extractor here rather than changing PreHook.
func extractPath(params map[string]any) (string, bool) {
	v, ok := params["path"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
