package llm

// ToolRegistry is the narrow surface the orchestration loop needs from a
// tool collection. Execute returns model-visible text; a non-nil error means
// the tool itself failed and the orchestration must abort.
type ToolRegistry interface {
	Definitions() []Tool
	Execute(name string, args map[string]any) (string, error)
}
