package tools

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/harunnryd/kirana/pkg/llm"
)

// Source is a citation surfaced with an answer, pointing at the course
// material a snippet came from.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Tool is a named capability the model can invoke. Execute returns
// model-visible text; a non-nil error is fatal to the calling orchestration.
type Tool interface {
	Definition() llm.Tool
	Execute(args map[string]any) (string, error)
}

// SourceTracker is implemented by tools that record citation sources as an
// execution side effect. The most recent successful execution wins.
type SourceTracker interface {
	LastSources() []Source
	ResetSources()
}

// Registry holds named tools and dispatches execution. One registry serves
// one logical conversation request: the sources slot is not meant to be
// shared across concurrent runs.
type Registry struct {
	mu    sync.Mutex
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. The definition must carry a name, and names are
// unique; a duplicate is a configuration error, not an overwrite.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()
	if strings.TrimSpace(def.Name) == "" {
		return errors.New("tool must have a 'name' in its definition")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	r.tools[def.Name] = tool
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns tool definitions in registration order.
func (r *Registry) Definitions() []llm.Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches by name. An unknown name is a recoverable,
// model-visible condition returned as text, never an error: the model can
// read the sentinel and adapt.
func (r *Registry) Execute(name string, args map[string]any) (string, error) {
	r.mu.Lock()
	tool := r.tools[name]
	r.mu.Unlock()
	if tool == nil {
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}
	return tool.Execute(args)
}

// LastSources returns the sources recorded by the most recent
// source-producing execution, or nil when none recorded or after a reset.
func (r *Registry) LastSources() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if tracker, ok := r.tools[name].(SourceTracker); ok {
			if sources := tracker.LastSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return nil
}

// ResetSources clears retained sources on every tracking tool. Idempotent.
func (r *Registry) ResetSources() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if tracker, ok := r.tools[name].(SourceTracker); ok {
			tracker.ResetSources()
		}
	}
}

var _ llm.ToolRegistry = (*Registry)(nil)

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("invalid %s", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing %s", key)
	}
	return s, nil
}

func optionalString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// optionalInt accepts the numeric shapes JSON decoding produces.
func optionalInt(args map[string]any, key string) *int {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	}
	return nil
}
