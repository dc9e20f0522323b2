package store

import "context"

type Lesson struct {
	Number int
	Title  string
	Link   string
}

type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

// Chunk is one indexed piece of course text. LessonNumber is nil for text
// outside any lesson, such as course introductions.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Index        int
}

type OutlineLesson struct {
	LessonNumber int
	LessonTitle  string
}

type CourseOutline struct {
	CourseTitle string
	CourseLink  string
	Lessons     []OutlineLesson
}

type SearchQuery struct {
	Query        string
	CourseName   string
	LessonNumber *int
	Limit        int
}

// VectorStore indexes course material and answers retrieval queries.
// Search reports backend failures and unresolvable course names through
// SearchResults.Error so they stay model-visible text, not Go errors.
type VectorStore interface {
	AddCourse(ctx context.Context, course Course, chunks []Chunk) error
	Search(ctx context.Context, query SearchQuery) SearchResults
	CourseOutline(ctx context.Context, courseName string) *CourseOutline
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) string
	CourseTitles(ctx context.Context) []string
	CourseCount(ctx context.Context) int
	Clear(ctx context.Context) error
}
