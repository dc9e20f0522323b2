package transports

import (
	"context"

	"github.com/harunnryd/kirana/pkg/tools"
)

// Transport is a client-facing surface for answering questions.
// Implementations are responsible for their own network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ReadyReporter reports whether a transport is accepting traffic.
// Implementations are optional and used for health reporting.
type ReadyReporter interface {
	Ready() bool
}

// Answer is one completed question turn.
type Answer struct {
	Answer    string
	Sources   []tools.Source
	SessionID string
}

// CourseStats summarizes the indexed catalog.
type CourseStats struct {
	TotalCourses int
	CourseTitles []string
}

// Answerer is the engine surface transports call into.
type Answerer interface {
	// Answer runs one query turn. A blank sessionID starts a new session;
	// the returned Answer always carries the effective session id.
	Answer(ctx context.Context, query, sessionID string) (Answer, error)
	CourseStats(ctx context.Context) (CourseStats, error)
	ClearSession(sessionID string)
}
