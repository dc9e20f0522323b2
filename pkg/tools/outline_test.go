package tools

import (
	"testing"

	"github.com/harunnryd/kirana/pkg/store"
	mockstore "github.com/harunnryd/kirana/pkg/stores/mock"
)

func TestOutlineRendersCourse(t *testing.T) {
	vs := mockstore.NewVectorStore()
	vs.SetOutline("MCP", &store.CourseOutline{
		CourseTitle: "MCP: Build Rich-Context AI Apps",
		CourseLink:  "https://example.com/mcp",
		Lessons: []store.OutlineLesson{
			{LessonNumber: 0, LessonTitle: "Introduction"},
			{LessonNumber: 1, LessonTitle: "Why MCP"},
		},
	})
	tool := NewOutlineTool(vs)

	out, err := tool.Execute(map[string]any{"course_name": "MCP"})
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	want := "Course: MCP: Build Rich-Context AI Apps\nLink: https://example.com/mcp\nLessons:\n0. Introduction\n1. Why MCP"
	if out != want {
		t.Fatalf("unexpected outline:\n%q\nwant:\n%q", out, want)
	}
}

func TestOutlineWithoutLinkOrLessons(t *testing.T) {
	vs := mockstore.NewVectorStore()
	vs.SetOutline("Bare", &store.CourseOutline{CourseTitle: "Bare Course"})
	tool := NewOutlineTool(vs)

	out, err := tool.Execute(map[string]any{"course_name": "Bare"})
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	want := "Course: Bare Course\nLessons:\nNo lessons found"
	if out != want {
		t.Fatalf("unexpected outline %q", out)
	}
}

func TestOutlineUnknownCourse(t *testing.T) {
	tool := NewOutlineTool(mockstore.NewVectorStore())
	out, err := tool.Execute(map[string]any{"course_name": "Nonexistent"})
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if out != "No course found matching 'Nonexistent'" {
		t.Fatalf("unexpected message %q", out)
	}
}

func TestOutlineMissingCourseNameFails(t *testing.T) {
	tool := NewOutlineTool(mockstore.NewVectorStore())
	if _, err := tool.Execute(map[string]any{}); err == nil {
		t.Fatalf("expected error for missing course_name")
	}
}
