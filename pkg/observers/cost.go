package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/kirana/pkg/metrics"
)

// CostRates prices completion usage in USD per million tokens.
type CostRates struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

type CostSummary struct {
	RunID         string  `json:"run_id,omitempty"`
	Provider      string  `json:"provider,omitempty"`
	Completions   int     `json:"completions"`
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	EstimatedUSD  float64 `json:"estimated_usd"`
	RecordedAtUTC string  `json:"recorded_at_utc"`
}

// CostObserver accumulates token usage per run and writes one cost summary
// file per run on Close.
type CostObserver struct {
	dir   string
	rates CostRates
	mu    sync.Mutex
	stats map[string]*CostSummary
}

func NewCostObserver(dir string, rates CostRates) *CostObserver {
	return &CostObserver{dir: dir, rates: rates, stats: make(map[string]*CostSummary)}
}

func (o *CostObserver) RecordEvent(ev metrics.MetricsEvent) {
	if strings.TrimSpace(o.dir) == "" {
		return
	}
	if ev.Name != "completion_round" || ev.Tags == nil {
		return
	}
	runID := ev.Tags["run_id"]
	if runID == "" {
		return
	}
	o.mu.Lock()
	stat := o.stats[runID]
	if stat == nil {
		stat = &CostSummary{RunID: runID, Provider: ev.Tags["provider"]}
		o.stats[runID] = stat
	}
	stat.Completions++
	stat.InputTokens += intField(ev.Fields, "input_tokens")
	stat.OutputTokens += intField(ev.Fields, "output_tokens")
	o.mu.Unlock()
}

func (o *CostObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	var errOut error
	for id, stat := range o.stats {
		stat.EstimatedUSD = o.estimate(stat)
		stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
		b, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			errOut = errors.Join(errOut, err)
			continue
		}
		path := filepath.Join(o.dir, sanitizeID(id)+".cost.json")
		if err := os.WriteFile(path, b, 0o644); err != nil {
			errOut = errors.Join(errOut, err)
		}
	}
	return errOut
}

func (o *CostObserver) estimate(stat *CostSummary) float64 {
	in := float64(stat.InputTokens) * o.rates.InputPerMTok
	out := float64(stat.OutputTokens) * o.rates.OutputPerMTok
	return (in + out) / 1e6
}

var _ metrics.Observer = (*CostObserver)(nil)
