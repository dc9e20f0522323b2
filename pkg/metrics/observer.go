// Package metrics defines the event type and observer plumbing shared by
// the engine, the orchestrator, and the resilience wrappers. Sinks that
// write artifacts live in pkg/observers.
package metrics

import "time"

// MetricsEvent is a single named measurement. Tags identify where it came
// from (run, session, provider), Fields carry free-form payload, and Value
// is the measurement itself when the event has one.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Observer receives events. Implementations must be safe for concurrent
// use; producers call RecordEvent from request goroutines.
type Observer interface {
	RecordEvent(ev MetricsEvent)
}
