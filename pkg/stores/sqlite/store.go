package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/harunnryd/kirana/pkg/errorsx"
	"github.com/harunnryd/kirana/pkg/store"
)

// DefaultLimit bounds Search results when the query does not set one.
const DefaultLimit = 5

const schema = `
CREATE TABLE IF NOT EXISTS courses (
	title      TEXT PRIMARY KEY,
	link       TEXT NOT NULL DEFAULT '',
	instructor TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS lessons (
	course_title TEXT NOT NULL,
	number       INTEGER NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	link         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (course_title, number)
);
CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
	content,
	course_title UNINDEXED,
	lesson_number UNINDEXED,
	chunk_index UNINDEXED
);
`

// Store is a VectorStore backed by a SQLite file. Chunks live in an FTS5
// table and Search ranks them with bm25; the rank is reported as the
// result distance, lower is better.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and prepares the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("create store directory: %w", err), errorsx.ReasonStoreWrite)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("open store: %w", err), errorsx.ReasonStoreWrite)
	}
	for _, pragma := range []string{"journal_mode=WAL", "busy_timeout=5000", "synchronous=NORMAL"} {
		if _, err := db.Exec("PRAGMA " + pragma + ";"); err != nil {
			db.Close()
			return nil, errorsx.Wrap(fmt.Errorf("set PRAGMA %s: %w", pragma, err), errorsx.ReasonStoreWrite)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errorsx.Wrap(fmt.Errorf("prepare schema: %w", err), errorsx.ReasonStoreWrite)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) AddCourse(ctx context.Context, course store.Course, chunks []store.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("begin add course: %w", err), errorsx.ReasonStoreWrite)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO courses(title, link, instructor) VALUES(?, ?, ?)`,
		course.Title, course.Link, course.Instructor); err != nil {
		return errorsx.Wrap(fmt.Errorf("insert course %q: %w", course.Title, err), errorsx.ReasonStoreWrite)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_title = ?`, course.Title); err != nil {
		return errorsx.Wrap(fmt.Errorf("reset lessons for %q: %w", course.Title, err), errorsx.ReasonStoreWrite)
	}
	for _, lesson := range course.Lessons {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lessons(course_title, number, title, link) VALUES(?, ?, ?, ?)`,
			course.Title, lesson.Number, lesson.Title, lesson.Link); err != nil {
			return errorsx.Wrap(fmt.Errorf("insert lesson %d of %q: %w", lesson.Number, course.Title, err), errorsx.ReasonStoreWrite)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE course_title = ?`, course.Title); err != nil {
		return errorsx.Wrap(fmt.Errorf("reset chunks for %q: %w", course.Title, err), errorsx.ReasonStoreWrite)
	}
	for _, chunk := range chunks {
		var lesson any
		if chunk.LessonNumber != nil {
			lesson = *chunk.LessonNumber
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(content, course_title, lesson_number, chunk_index) VALUES(?, ?, ?, ?)`,
			chunk.Content, chunk.CourseTitle, lesson, chunk.Index); err != nil {
			return errorsx.Wrap(fmt.Errorf("insert chunk %d of %q: %w", chunk.Index, course.Title, err), errorsx.ReasonStoreWrite)
		}
	}
	if err := tx.Commit(); err != nil {
		return errorsx.Wrap(fmt.Errorf("commit add course: %w", err), errorsx.ReasonStoreWrite)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, q store.SearchQuery) store.SearchResults {
	title := ""
	if q.CourseName != "" {
		titles, err := s.courseTitles(ctx)
		if err != nil {
			return store.SearchResults{Error: "Search error: " + err.Error()}
		}
		title = store.ResolveCourseName(q.CourseName, titles)
		if title == "" {
			return store.SearchResults{Error: fmt.Sprintf("No course found matching '%s'", q.CourseName)}
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT content, course_title, lesson_number, chunk_index, bm25(chunks)
		FROM chunks WHERE chunks MATCH ?`
	args := []any{matchExpr(q.Query)}
	if title != "" {
		query += ` AND course_title = ?`
		args = append(args, title)
	}
	if q.LessonNumber != nil {
		query += ` AND lesson_number = ?`
		args = append(args, *q.LessonNumber)
	}
	query += ` ORDER BY bm25(chunks) LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.SearchResults{Error: "Search error: " + err.Error()}
	}
	defer rows.Close()

	var results store.SearchResults
	for rows.Next() {
		var content, courseTitle string
		var lesson sql.NullInt64
		var index int
		var rank float64
		if err := rows.Scan(&content, &courseTitle, &lesson, &index, &rank); err != nil {
			return store.SearchResults{Error: "Search error: " + err.Error()}
		}
		meta := store.ChunkMeta{CourseTitle: courseTitle, ChunkIndex: index}
		if lesson.Valid {
			n := int(lesson.Int64)
			meta.LessonNumber = &n
		}
		results.Documents = append(results.Documents, content)
		results.Metadata = append(results.Metadata, meta)
		results.Distances = append(results.Distances, rank)
	}
	if err := rows.Err(); err != nil {
		return store.SearchResults{Error: "Search error: " + err.Error()}
	}
	return results
}

// CourseOutline resolves name against the indexed titles and loads the
// ordered lesson list. Backend failures are logged and reported as a miss.
func (s *Store) CourseOutline(ctx context.Context, name string) *store.CourseOutline {
	outline, err := s.courseOutline(ctx, name)
	if err != nil {
		slog.Warn("store_query_failed", "op", "course_outline", "error", err)
		return nil
	}
	return outline
}

func (s *Store) courseOutline(ctx context.Context, name string) (*store.CourseOutline, error) {
	titles, err := s.courseTitles(ctx)
	if err != nil {
		return nil, err
	}
	title := store.ResolveCourseName(name, titles)
	if title == "" {
		return nil, nil
	}

	outline := &store.CourseOutline{CourseTitle: title}
	if err := s.db.QueryRowContext(ctx,
		`SELECT link FROM courses WHERE title = ?`, title).Scan(&outline.CourseLink); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("load course %q: %w", title, err), errorsx.ReasonStoreQuery)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, title FROM lessons WHERE course_title = ? ORDER BY number`, title)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("load lessons for %q: %w", title, err), errorsx.ReasonStoreQuery)
	}
	defer rows.Close()
	for rows.Next() {
		var lesson store.OutlineLesson
		if err := rows.Scan(&lesson.LessonNumber, &lesson.LessonTitle); err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("scan lesson for %q: %w", title, err), errorsx.ReasonStoreQuery)
		}
		outline.Lessons = append(outline.Lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("load lessons for %q: %w", title, err), errorsx.ReasonStoreQuery)
	}
	return outline, nil
}

func (s *Store) LessonLink(ctx context.Context, title string, lesson int) string {
	var link string
	err := s.db.QueryRowContext(ctx,
		`SELECT link FROM lessons WHERE course_title = ? AND number = ?`, title, lesson).Scan(&link)
	if err == sql.ErrNoRows {
		return ""
	}
	if err != nil {
		slog.Warn("store_query_failed", "op", "lesson_link", "error", err)
		return ""
	}
	return link
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
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM courses ORDER BY rowid`)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("list courses: %w", err), errorsx.ReasonStoreQuery)
	}
	defer rows.Close()
	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("scan course title: %w", err), errorsx.ReasonStoreQuery)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("list courses: %w", err), errorsx.ReasonStoreQuery)
	}
	return titles, nil
}

func (s *Store) CourseCount(ctx context.Context) int {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		slog.Warn("store_query_failed", "op", "course_count", "error", err)
		return 0
	}
	return count
}

func (s *Store) Clear(ctx context.Context) error {
	for _, stmt := range []string{`DELETE FROM chunks`, `DELETE FROM lessons`, `DELETE FROM courses`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errorsx.Wrap(fmt.Errorf("clear store: %w", err), errorsx.ReasonStoreWrite)
		}
	}
	return nil
}

// matchExpr turns free text into an FTS5 query. Tokens are quoted so
// punctuation cannot be parsed as FTS syntax, and joined with OR so a
// partial term overlap still matches.
func matchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

var _ store.VectorStore = (*Store)(nil)
