package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LifecycleRunner owns the serving lifecycle: one Run, one Stop, and a
// bounded drain in between. State moves New, Starting, Running, Draining,
// Stopped and never goes backwards.
type LifecycleRunner struct {
	state   atomic.Int32
	drainer Drainer
	hooks   Hooks
	timeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	onceStop sync.Once
	stopErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &LifecycleRunner{
		drainer: drainer,
		hooks:   hooks,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	r.state.Store(int32(StateNew))
	return r
}

// Run blocks until Stop is called or the parent ctx is canceled. It may be
// called once; later calls report an invalid transition.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return errors.New("invalid state transition")
	}
	PrintBanner()
	run := r.adoptParent(ctx)
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.Store(int32(StateRunning))
	<-run.Done()
	return r.stop()
}

// Stop cancels the run context and performs the drain. Safe to call more
// than once and before Run.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

// adoptParent rebases the run context onto the caller's ctx. A Stop that
// landed before the swap carries over: the fresh context starts canceled.
func (r *LifecycleRunner) adoptParent(ctx context.Context) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx == nil {
		return r.ctx
	}
	stopped := r.ctx.Err() != nil
	r.ctx, r.cancel = context.WithCancel(ctx)
	if stopped {
		r.cancel()
	}
	return r.ctx
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.state.Store(int32(StateDraining))
		if r.drainer != nil {
			done := make(chan struct{})
			go func() {
				_ = r.drainer.Drain()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(r.timeout):
				r.stopErr = errors.New("drain timeout")
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}
