package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/kirana/pkg/store"
)

// VectorStore is an in-memory double with scripted search output and call
// capture, for exercising tools and engines without a real index.
type VectorStore struct {
	mu sync.Mutex

	results  store.SearchResults
	outlines map[string]*store.CourseOutline
	links    map[string]map[int]string
	courses  []store.Course

	searches []store.SearchQuery
}

func NewVectorStore() *VectorStore {
	return &VectorStore{
		outlines: make(map[string]*store.CourseOutline),
		links:    make(map[string]map[int]string),
	}
}

// SetResults scripts the output of every subsequent Search call.
func (s *VectorStore) SetResults(r store.SearchResults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = r
}

// SetOutline scripts CourseOutline for resolved titles matching name.
func (s *VectorStore) SetOutline(name string, o *store.CourseOutline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outlines[name] = o
}

// SetLessonLink scripts LessonLink for a course title and lesson number.
func (s *VectorStore) SetLessonLink(title string, lesson int, link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[title] == nil {
		s.links[title] = make(map[int]string)
	}
	s.links[title][lesson] = link
}

// Searches returns every query Search has seen, in call order.
func (s *VectorStore) Searches() []store.SearchQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.SearchQuery, len(s.searches))
	copy(out, s.searches)
	return out
}

func (s *VectorStore) AddCourse(ctx context.Context, course store.Course, chunks []store.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = append(s.courses, course)
	return nil
}

func (s *VectorStore) Search(ctx context.Context, q store.SearchQuery) store.SearchResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, q)
	return s.results
}

func (s *VectorStore) CourseOutline(ctx context.Context, name string) *store.CourseOutline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outlines[name]
}

func (s *VectorStore) LessonLink(ctx context.Context, title string, lesson int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[title][lesson]
}

func (s *VectorStore) CourseTitles(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make([]string, 0, len(s.courses))
	for _, c := range s.courses {
		titles = append(titles, c.Title)
	}
	return titles
}

func (s *VectorStore) CourseCount(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.courses)
}

func (s *VectorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = nil
	return nil
}

var _ store.VectorStore = (*VectorStore)(nil)
