package tools

import (
	"testing"

	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/store"
	mockstore "github.com/harunnryd/kirana/pkg/stores/mock"
)

type namedTool struct {
	name   string
	output string
}

func (t namedTool) Definition() llm.Tool { return llm.Tool{Name: t.name} }

func (t namedTool) Execute(args map[string]any) (string, error) { return t.output, nil }

func TestRegistryRegisterAndDefinitions(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(namedTool{name: "alpha"}); err != nil {
		t.Fatalf("register error: %v", err)
	}
	if err := r.Register(namedTool{name: "beta"}); err != nil {
		t.Fatalf("register error: %v", err)
	}
	defs := r.Definitions()
	if len(defs) != 2 || defs[0].Name != "alpha" || defs[1].Name != "beta" {
		t.Fatalf("expected registration order preserved, got %+v", defs)
	}
}

func TestRegistryRejectsUnnamedAndDuplicateTools(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(namedTool{}); err == nil {
		t.Fatalf("expected error for unnamed tool")
	}
	if err := r.Register(namedTool{name: "alpha"}); err != nil {
		t.Fatalf("register error: %v", err)
	}
	if err := r.Register(namedTool{name: "alpha"}); err == nil {
		t.Fatalf("expected error for duplicate name")
	}
}

func TestRegistryExecuteUnknownToolReturnsSentinel(t *testing.T) {
	r := NewRegistry()
	out, err := r.Execute("missing_tool", nil)
	if err != nil {
		t.Fatalf("expected recoverable sentinel, got error %v", err)
	}
	if out != "Tool 'missing_tool' not found" {
		t.Fatalf("unexpected sentinel %q", out)
	}
}

func TestRegistrySourceTracking(t *testing.T) {
	vs := mockstore.NewVectorStore()
	vs.SetResults(store.SearchResults{
		Documents: []string{"chunk"},
		Metadata:  []store.ChunkMeta{{CourseTitle: "Course A", LessonNumber: intPtr(1)}},
	})
	r := NewRegistry()
	if err := r.Register(NewSearchTool(vs)); err != nil {
		t.Fatalf("register error: %v", err)
	}
	if err := r.Register(NewOutlineTool(vs)); err != nil {
		t.Fatalf("register error: %v", err)
	}

	if sources := r.LastSources(); sources != nil {
		t.Fatalf("expected no sources before execution, got %+v", sources)
	}
	if _, err := r.Execute("search_course_content", map[string]any{"query": "anything"}); err != nil {
		t.Fatalf("execute error: %v", err)
	}
	sources := r.LastSources()
	if len(sources) != 1 || sources[0].Text != "Course A - Lesson 1" {
		t.Fatalf("unexpected sources %+v", sources)
	}

	r.ResetSources()
	if r.LastSources() != nil {
		t.Fatalf("expected sources cleared after reset")
	}
}
