package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/kirana/pkg/errorsx"
	"github.com/harunnryd/kirana/pkg/store"
)

const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
)

// DefaultLimit bounds Search results when the query does not set one.
const DefaultLimit = 5

// Store is a VectorStore backed by a remote Chroma server. Course metadata
// lives in a catalog collection keyed by title, with the lesson list
// serialized into a lessons_json metadata field; chunks live in a content
// collection with course_title and lesson_number metadata for filtering.
type Store struct {
	BaseURL string
	Client  *http.Client

	mu        sync.Mutex
	catalogID string
	contentID string
}

func New(baseURL string) *Store {
	return &Store{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type collectionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

type getResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

type lessonMeta struct {
	LessonNumber int    `json:"lesson_number"`
	LessonTitle  string `json:"lesson_title"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

func (s *Store) AddCourse(ctx context.Context, course store.Course, chunks []store.Chunk) error {
	catalogID, contentID, err := s.collections(ctx)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("prepare collections: %w", err), errorsx.ReasonStoreWrite)
	}

	lessons := make([]lessonMeta, 0, len(course.Lessons))
	for _, l := range course.Lessons {
		lessons = append(lessons, lessonMeta{LessonNumber: l.Number, LessonTitle: l.Title, LessonLink: l.Link})
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("encode lessons for %q: %w", course.Title, err), errorsx.ReasonStoreWrite)
	}
	catalogAdd := map[string]any{
		"ids":       []string{course.Title},
		"documents": []string{course.Title},
		"metadatas": []map[string]any{{
			"title":        course.Title,
			"instructor":   course.Instructor,
			"course_link":  course.Link,
			"lessons_json": string(lessonsJSON),
			"lesson_count": len(course.Lessons),
		}},
	}
	if err := s.post(ctx, "/collections/"+catalogID+"/add", catalogAdd, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("add course %q: %w", course.Title, err), errorsx.ReasonStoreWrite)
	}

	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(chunks))
	docs := make([]string, 0, len(chunks))
	metas := make([]map[string]any, 0, len(chunks))
	prefix := strings.ReplaceAll(course.Title, " ", "_")
	for _, chunk := range chunks {
		ids = append(ids, prefix+"_"+strconv.Itoa(chunk.Index))
		docs = append(docs, chunk.Content)
		meta := map[string]any{
			"course_title": chunk.CourseTitle,
			"chunk_index":  chunk.Index,
		}
		if chunk.LessonNumber != nil {
			meta["lesson_number"] = *chunk.LessonNumber
		}
		metas = append(metas, meta)
	}
	contentAdd := map[string]any{"ids": ids, "documents": docs, "metadatas": metas}
	if err := s.post(ctx, "/collections/"+contentID+"/add", contentAdd, nil); err != nil {
		return errorsx.Wrap(fmt.Errorf("add chunks for %q: %w", course.Title, err), errorsx.ReasonStoreWrite)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, q store.SearchQuery) store.SearchResults {
	catalogID, contentID, err := s.collections(ctx)
	if err != nil {
		return store.SearchResults{Error: "Search error: " + err.Error()}
	}

	title := ""
	if q.CourseName != "" {
		title, err = s.resolveCourse(ctx, catalogID, q.CourseName)
		if err != nil {
			return store.SearchResults{Error: "Search error: " + err.Error()}
		}
		if title == "" {
			return store.SearchResults{Error: fmt.Sprintf("No course found matching '%s'", q.CourseName)}
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	body := map[string]any{
		"query_texts": []string{q.Query},
		"n_results":   limit,
	}
	if where := buildWhere(title, q.LessonNumber); where != nil {
		body["where"] = where
	}

	var resp queryResponse
	if err := s.post(ctx, "/collections/"+contentID+"/query", body, &resp); err != nil {
		return store.SearchResults{Error: "Search error: " + err.Error()}
	}
	if len(resp.Documents) == 0 {
		return store.SearchResults{}
	}

	var results store.SearchResults
	results.Documents = resp.Documents[0]
	for i := range resp.Documents[0] {
		var meta store.ChunkMeta
		if i < len(resp.Metadatas[0]) {
			m := resp.Metadatas[0][i]
			meta.CourseTitle, _ = m["course_title"].(string)
			if n, ok := m["lesson_number"].(float64); ok {
				lesson := int(n)
				meta.LessonNumber = &lesson
			}
			if idx, ok := m["chunk_index"].(float64); ok {
				meta.ChunkIndex = int(idx)
			}
		}
		results.Metadata = append(results.Metadata, meta)
	}
	if len(resp.Distances) > 0 {
		results.Distances = resp.Distances[0]
	}
	return results
}

// buildWhere assembles the metadata filter. Two clauses need an explicit
// $and wrapper, a single clause is passed bare.
func buildWhere(title string, lesson *int) map[string]any {
	var clauses []map[string]any
	if title != "" {
		clauses = append(clauses, map[string]any{"course_title": title})
	}
	if lesson != nil {
		clauses = append(clauses, map[string]any{"lesson_number": *lesson})
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

// CourseOutline resolves name through the catalog and decodes the stored
// lesson list. Backend failures are logged and reported as a miss.
func (s *Store) CourseOutline(ctx context.Context, name string) *store.CourseOutline {
	outline, err := s.courseOutline(ctx, name)
	if err != nil {
		slog.Warn("store_query_failed", "op", "course_outline", "error", err)
		return nil
	}
	return outline
}

func (s *Store) courseOutline(ctx context.Context, name string) (*store.CourseOutline, error) {
	catalogID, _, err := s.collections(ctx)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("prepare collections: %w", err), errorsx.ReasonStoreQuery)
	}
	title, err := s.resolveCourse(ctx, catalogID, name)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("resolve course %q: %w", name, err), errorsx.ReasonStoreQuery)
	}
	if title == "" {
		return nil, nil
	}
	meta, err := s.catalogEntry(ctx, catalogID, title)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("load course %q: %w", title, err), errorsx.ReasonStoreQuery)
	}
	if meta == nil {
		return nil, nil
	}
	outline := &store.CourseOutline{CourseTitle: title}
	outline.CourseLink, _ = meta["course_link"].(string)
	for _, lesson := range parseLessons(meta) {
		outline.Lessons = append(outline.Lessons, store.OutlineLesson{
			LessonNumber: lesson.LessonNumber,
			LessonTitle:  lesson.LessonTitle,
		})
	}
	return outline, nil
}

func (s *Store) LessonLink(ctx context.Context, title string, lesson int) string {
	link, err := s.lessonLink(ctx, title, lesson)
	if err != nil {
		slog.Warn("store_query_failed", "op", "lesson_link", "error", err)
		return ""
	}
	return link
}

func (s *Store) lessonLink(ctx context.Context, title string, lesson int) (string, error) {
	catalogID, _, err := s.collections(ctx)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("prepare collections: %w", err), errorsx.ReasonStoreQuery)
	}
	meta, err := s.catalogEntry(ctx, catalogID, title)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("load course %q: %w", title, err), errorsx.ReasonStoreQuery)
	}
	if meta == nil {
		return "", nil
	}
	for _, l := range parseLessons(meta) {
		if l.LessonNumber == lesson {
			return l.LessonLink, nil
		}
	}
	return "", nil
}

func (s *Store) CourseTitles(ctx context.Context) []string {
	titles, err := s.courseTitles(ctx)
	if err != nil {
		slog.Warn("store_query_failed", "op", "course_titles", "error", err)
		return nil
	}
	return titles
}

func (s *Store) courseTitles(ctx context.Context) ([]string, error) {
	catalogID, _, err := s.collections(ctx)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("prepare collections: %w", err), errorsx.ReasonStoreQuery)
	}
	var resp getResponse
	if err := s.post(ctx, "/collections/"+catalogID+"/get", map[string]any{}, &resp); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("list courses: %w", err), errorsx.ReasonStoreQuery)
	}
	return resp.IDs, nil
}

func (s *Store) CourseCount(ctx context.Context) int {
	titles, err := s.courseTitles(ctx)
	if err != nil {
		slog.Warn("store_query_failed", "op", "course_count", "error", err)
		return 0
	}
	return len(titles)
}

func (s *Store) Clear(ctx context.Context) error {
	for _, name := range []string{catalogCollection, contentCollection} {
		if err := s.deleteCollection(ctx, name); err != nil {
			return errorsx.Wrap(fmt.Errorf("drop collection %s: %w", name, err), errorsx.ReasonStoreWrite)
		}
	}
	s.mu.Lock()
	s.catalogID, s.contentID = "", ""
	s.mu.Unlock()
	return nil
}

// resolveCourse asks the catalog for the nearest title to name. An empty
// result set resolves to "".
func (s *Store) resolveCourse(ctx context.Context, catalogID, name string) (string, error) {
	body := map[string]any{"query_texts": []string{name}, "n_results": 1}
	var resp queryResponse
	if err := s.post(ctx, "/collections/"+catalogID+"/query", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Metadatas) == 0 || len(resp.Metadatas[0]) == 0 {
		return "", nil
	}
	title, _ := resp.Metadatas[0][0]["title"].(string)
	return title, nil
}

func (s *Store) catalogEntry(ctx context.Context, catalogID, title string) (map[string]any, error) {
	var resp getResponse
	if err := s.post(ctx, "/collections/"+catalogID+"/get", map[string]any{"ids": []string{title}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Metadatas) == 0 {
		return nil, nil
	}
	return resp.Metadatas[0], nil
}

func parseLessons(meta map[string]any) []lessonMeta {
	raw, _ := meta["lessons_json"].(string)
	if raw == "" {
		return nil
	}
	var lessons []lessonMeta
	if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
		return nil
	}
	return lessons
}

// collections resolves and caches the catalog and content collection ids.
func (s *Store) collections(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogID != "" && s.contentID != "" {
		return s.catalogID, s.contentID, nil
	}
	catalog, err := s.getOrCreate(ctx, catalogCollection)
	if err != nil {
		return "", "", err
	}
	content, err := s.getOrCreate(ctx, contentCollection)
	if err != nil {
		return "", "", err
	}
	s.catalogID, s.contentID = catalog, content
	return s.catalogID, s.contentID, nil
}

func (s *Store) getOrCreate(ctx context.Context, name string) (string, error) {
	var info collectionInfo
	body := map[string]any{"name": name, "get_or_create": true}
	if err := s.post(ctx, "/collections", body, &info); err != nil {
		return "", err
	}
	if info.ID == "" {
		return "", fmt.Errorf("collection %s: server returned no id", name)
	}
	return info.ID, nil
}

func (s *Store) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/v1"+path, bytes.NewBuffer(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errors.New(string(body))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Store) deleteCollection(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.BaseURL+"/api/v1/collections/"+name, nil)
	if err != nil {
		return err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errors.New(string(body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *Store) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

var _ store.VectorStore = (*Store)(nil)
