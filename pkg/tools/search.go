package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/store"
)

// SearchTool retrieves course content through the vector store and records
// one Source per returned document.
type SearchTool struct {
	store store.VectorStore

	mu          sync.Mutex
	lastSources []Source
}

func NewSearchTool(vs store.VectorStore) *SearchTool {
	return &SearchTool{store: vs}
}

func (t *SearchTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work)",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute runs the search. Backend failures and unresolved course names
// arrive in SearchResults.Error and are returned verbatim so the model sees
// them; zero matches produce a message echoing the active filters.
func (t *SearchTool) Execute(args map[string]any) (string, error) {
	query, err := requiredString(args, "query")
	if err != nil {
		return "", err
	}
	courseName := optionalString(args, "course_name")
	lessonNumber := optionalInt(args, "lesson_number")

	results := t.store.Search(context.Background(), store.SearchQuery{
		Query:        query,
		CourseName:   courseName,
		LessonNumber: lessonNumber,
	})
	if results.Error != "" {
		return results.Error, nil
	}
	if results.IsEmpty() {
		filterInfo := ""
		if courseName != "" {
			filterInfo += fmt.Sprintf(" in course '%s'", courseName)
		}
		if lessonNumber != nil {
			filterInfo += fmt.Sprintf(" in lesson %d", *lessonNumber)
		}
		return "No relevant content found" + filterInfo + ".", nil
	}
	return t.formatResults(results), nil
}

// formatResults renders "[Course - Lesson N]" labelled snippets separated by
// blank lines and records the sources, overwriting any previous set.
func (t *SearchTool) formatResults(results store.SearchResults) string {
	var formatted []string
	var sources []Source
	for i, doc := range results.Documents {
		if i >= len(results.Metadata) {
			break
		}
		meta := results.Metadata[i]
		label := meta.CourseTitle
		link := ""
		if meta.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", meta.CourseTitle, *meta.LessonNumber)
			link = t.store.LessonLink(context.Background(), meta.CourseTitle, *meta.LessonNumber)
		}
		formatted = append(formatted, fmt.Sprintf("[%s]\n%s", label, doc))
		sources = append(sources, Source{Text: label, Link: link})
	}

	t.mu.Lock()
	t.lastSources = sources
	t.mu.Unlock()

	return strings.Join(formatted, "\n\n")
}

func (t *SearchTool) LastSources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSources
}

func (t *SearchTool) ResetSources() {
	t.mu.Lock()
	t.lastSources = nil
	t.mu.Unlock()
}

var (
	_ Tool          = (*SearchTool)(nil)
	_ SourceTracker = (*SearchTool)(nil)
)
