package hookengine

// SelectIntentToolName is the name of the single additional tool exposed
// to the language model (design doc §6).
const SelectIntentToolName = "select_active_intent"

// ToolSchema is a minimal, host-agnostic description of the handshake
// tool. The host renders this in whatever format its LLM tool-list
// expects; HookGuard itself has no opinion on the wire format.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SelectIntentToolSchema returns the schema for select_active_intent.
func SelectIntentToolSchema() ToolSchema {
	return ToolSchema{
		Name:        SelectIntentToolName,
		Description: "Bind the current turn to a declared intent. Must be called before any file-mutating tool.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"intent_id": map[string]any{
					"type":        "string",
					"description": "The id of the intent to bind, e.g. INT-001.",
				},
			},
			"required": []string{"intent_id"},
		},
	}
}
