package observers

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/harunnryd/kirana/pkg/metrics"
)

// LatencyObserver accumulates per-run completion and tool timings and logs
// one latency line when the run finishes.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	start        time.Time
	rounds       int
	completions  int
	toolCalls    int
	completionMS int64
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	runID := ""
	if ev.Tags != nil {
		runID = ev.Tags["run_id"]
	}
	if runID == "" {
		return
	}
	o.mu.Lock()
	t := o.traces[runID]
	if t == nil {
		t = &trace{start: ev.Time}
		o.traces[runID] = t
	}
	switch ev.Name {
	case "completion_round":
		t.completions++
		t.completionMS += intField(ev.Fields, "latency_ms")
		if r := roundTag(ev.Tags); r > t.rounds {
			t.rounds = r
		}
	case "tool_result":
		t.toolCalls++
		if r := roundTag(ev.Tags); r > t.rounds {
			t.rounds = r
		}
	case "llm_done", "generate_error":
		o.logRunLocked(runID, t, ev.Time)
		delete(o.traces, runID)
	}
	o.mu.Unlock()
}

func (o *LatencyObserver) logRunLocked(runID string, t *trace, end time.Time) {
	o.log.Info("latency",
		"run_id", runID,
		"rounds", t.rounds,
		"completions", t.completions,
		"tool_calls", t.toolCalls,
		"completion_ms", t.completionMS,
		"total_ms", durationMs(t.start, end),
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}

func intField(fields map[string]any, key string) int64 {
	if fields == nil {
		return 0
	}
	switch v := fields[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func roundTag(tags map[string]string) int {
	if tags == nil {
		return 0
	}
	n, _ := strconv.Atoi(tags["round"])
	return n
}

var _ metrics.Observer = (*LatencyObserver)(nil)
