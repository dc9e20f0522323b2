package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/store"
)

// OutlineTool answers course-structure questions with the course title,
// link, and full lesson list.
type OutlineTool struct {
	store store.VectorStore
}

func NewOutlineTool(vs store.VectorStore) *OutlineTool {
	return &OutlineTool{store: vs}
}

func (t *OutlineTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        "get_course_outline",
		Description: "Get the outline of a course including its title, link, and complete lesson list",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work)",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

func (t *OutlineTool) Execute(args map[string]any) (string, error) {
	courseName, err := requiredString(args, "course_name")
	if err != nil {
		return "", err
	}

	outline := t.store.CourseOutline(context.Background(), courseName)
	if outline == nil {
		return fmt.Sprintf("No course found matching '%s'", courseName), nil
	}

	lines := []string{fmt.Sprintf("Course: %s", outline.CourseTitle)}
	if outline.CourseLink != "" {
		lines = append(lines, fmt.Sprintf("Link: %s", outline.CourseLink))
	}
	lines = append(lines, "Lessons:")
	if len(outline.Lessons) == 0 {
		lines = append(lines, "No lessons found")
	} else {
		for _, lesson := range outline.Lessons {
			lines = append(lines, fmt.Sprintf("%d. %s", lesson.LessonNumber, lesson.LessonTitle))
		}
	}
	return strings.Join(lines, "\n"), nil
}

var _ Tool = (*OutlineTool)(nil)
