package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harunnryd/kirana/pkg/errorsx"
)

// Watcher re-ingests course documents when they change on disk. Events are
// debounced so an editor's write burst triggers a single pass per file.
type Watcher struct {
	dir      string
	ingestor *Ingestor
	debounce time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewWatcher(dir string, ingestor *Ingestor) *Watcher {
	return &Watcher{
		dir:      dir,
		ingestor: ingestor,
		debounce: 500 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("create docs watcher: %w", err), errorsx.ReasonIngestSource)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return errorsx.Wrap(fmt.Errorf("watch docs directory %s: %w", w.dir, err), errorsx.ReasonIngestSource)
	}
	slog.Info("docs_watcher_started", "dir", w.dir)
	go w.loop(ctx, watcher)
	return nil
}

// Stop ends the watch loop and waits for it to drain.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.done)
	defer watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".txt") {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			for path := range pending {
				delete(pending, path)
				stats, err := w.ingestor.IngestFile(ctx, path)
				if err != nil {
					slog.Warn("reingest_failed", "path", path, "error", err)
					continue
				}
				slog.Info("reingest_complete", "path", path, "chunks", stats.Chunks)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("docs_watcher_error", "error", err)
		}
	}
}
