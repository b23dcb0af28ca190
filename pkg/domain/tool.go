package domain

// ToolCall is a request, usually produced by the LLM provider, to run a named tool.
type ToolCall struct {
	ID   string         `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Name string         `json:"name" yaml:"name" mapstructure:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// ToolSpec describes a tool to the LLM provider.
// Parameters holds a JSON-Schema-like object.
type ToolSpec struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}
