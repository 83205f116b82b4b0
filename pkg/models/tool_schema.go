package models

// ToolSchema is one tool's advertisement to the LLM:
// {type:"function", function:{name, description, parameters}}.
// Shared between internal/tools (which builds it) and internal/llm
// (which forwards it to a provider) to avoid an import cycle between
// the two.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
