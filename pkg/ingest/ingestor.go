package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/harunnryd/kirana/pkg/errorsx"
	"github.com/harunnryd/kirana/pkg/resilience"
	"github.com/harunnryd/kirana/pkg/store"
)

// Stats reports what one ingestion pass added to the store.
type Stats struct {
	Courses int
	Chunks  int
}

// Ingestor parses documents from a source and writes them to the store.
// Courses already indexed are skipped unless the pass clears first.
type Ingestor struct {
	processor *DocumentProcessor
	store     store.VectorStore
	retry     resilience.RetryPolicy
}

func NewIngestor(processor *DocumentProcessor, vs store.VectorStore) *Ingestor {
	return &Ingestor{
		processor: processor,
		store:     vs,
		retry:     resilience.NewRetryPolicy(2, 200*time.Millisecond),
	}
}

// IngestSource loads every document the source yields. Documents that fail
// to parse are skipped with a warning; store write failures abort the pass.
func (ing *Ingestor) IngestSource(ctx context.Context, src Source, clear bool) (Stats, error) {
	var stats Stats
	if clear {
		if err := ing.store.Clear(ctx); err != nil {
			return stats, err
		}
	}
	existing := make(map[string]bool)
	for _, title := range ing.store.CourseTitles(ctx) {
		existing[title] = true
	}

	docs, err := src.Load(ctx)
	if err != nil {
		return stats, err
	}
	for _, doc := range docs {
		parsed, err := ing.processor.Parse(doc.Name, doc.Content)
		if err != nil {
			slog.Warn("document_skipped", "source", src.Name(), "document", doc.Name, "error", err)
			continue
		}
		if existing[parsed.Course.Title] {
			continue
		}
		if err := ing.add(ctx, parsed); err != nil {
			return stats, err
		}
		existing[parsed.Course.Title] = true
		stats.Courses++
		stats.Chunks += len(parsed.Chunks)
		slog.Info("course_indexed",
			"source", src.Name(),
			"course", parsed.Course.Title,
			"lessons", len(parsed.Course.Lessons),
			"chunks", len(parsed.Chunks))
	}
	return stats, nil
}

// IngestFile re-indexes a single document, replacing any previous version
// of its course.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (Stats, error) {
	var stats Stats
	data, err := os.ReadFile(path)
	if err != nil {
		return stats, errorsx.Wrap(fmt.Errorf("read document %s: %w", path, err), errorsx.ReasonIngestSource)
	}
	parsed, err := ing.processor.Parse(filepath.Base(path), string(data))
	if err != nil {
		return stats, err
	}
	if err := ing.add(ctx, parsed); err != nil {
		return stats, err
	}
	stats.Courses = 1
	stats.Chunks = len(parsed.Chunks)
	return stats, nil
}

func (ing *Ingestor) add(ctx context.Context, parsed *ParsedDocument) error {
	return ing.retry.Do(ctx, func() error {
		return ing.store.AddCourse(ctx, parsed.Course, parsed.Chunks)
	})
}
