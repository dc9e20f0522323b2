package metrics

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONLObserver appends every event as one JSON line to w. The per-run
// timeline artifacts skip events that carry no run or session tag, so
// this is where breaker trips, rate limits, and ingest activity land.
type JSONLObserver struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLObserver writes to w. Closing w is the caller's job; do it
// after the producing AsyncObserver has drained.
func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	return &JSONLObserver{w: w}
}

type jsonlEvent struct {
	Name   string            `json:"name"`
	Time   time.Time         `json:"time"`
	Value  float64           `json:"value,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Fields map[string]any    `json:"fields,omitempty"`
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	line, err := json.Marshal(jsonlEvent{
		Name:   ev.Name,
		Time:   ev.Time.UTC(),
		Value:  ev.Value,
		Tags:   ev.Tags,
		Fields: ev.Fields,
	})
	if err != nil {
		return
	}
	o.mu.Lock()
	_, _ = o.w.Write(append(line, '\n'))
	o.mu.Unlock()
}
