package mock

import (
	"context"
	"sync/atomic"

	"github.com/harunnryd/kirana/pkg/transports"
)

// Transport is an in-memory transport double. It records lifecycle calls
// and reports ready between Start and Stop.
type Transport struct {
	started atomic.Int32
	stopped atomic.Int32
	ready   atomic.Bool
}

func New() *Transport { return &Transport{} }

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	t.started.Add(1)
	t.ready.Store(true)
	if ctx != nil {
		go func() {
			<-ctx.Done()
			t.ready.Store(false)
		}()
	}
	return nil
}

func (t *Transport) Stop(ctx context.Context) error {
	t.stopped.Add(1)
	t.ready.Store(false)
	return nil
}

func (t *Transport) Ready() bool { return t.ready.Load() }

// StartCalls reports how many times Start ran.
func (t *Transport) StartCalls() int { return int(t.started.Load()) }

// StopCalls reports how many times Stop ran.
func (t *Transport) StopCalls() int { return int(t.stopped.Load()) }

var (
	_ transports.Transport     = (*Transport)(nil)
	_ transports.ReadyReporter = (*Transport)(nil)
)
