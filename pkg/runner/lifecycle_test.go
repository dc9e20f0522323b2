package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type blockingDrainer struct {
	delay time.Duration
	calls atomic.Int32
}

func (d *blockingDrainer) Drain() error {
	d.calls.Add(1)
	time.Sleep(d.delay)
	return nil
}

func waitForState(t *testing.T, r *LifecycleRunner, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %v, still %v", want, r.State())
}

func TestLifecycleRunnerRunAndStop(t *testing.T) {
	drainer := &blockingDrainer{}
	var started, stopped atomic.Bool
	r := NewLifecycleRunner(drainer, Hooks{
		OnStart: func() { started.Store(true) },
		OnStop:  func() { stopped.Store(true) },
	}, time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	waitForState(t, r, StateRunning)
	if !started.Load() {
		t.Fatal("OnStart hook should have run")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after stop")
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped state, got %v", r.State())
	}
	if !stopped.Load() {
		t.Fatal("OnStop hook should have run")
	}
	if drainer.calls.Load() != 1 {
		t.Fatalf("expected 1 drain, got %d", drainer.calls.Load())
	}
}

func TestLifecycleRunnerSecondRunFails(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	go func() { _ = r.Run(context.Background()) }()
	waitForState(t, r, StateRunning)
	_ = r.Stop()
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("second run should fail")
	}
}

func TestLifecycleRunnerStopBeforeRun(t *testing.T) {
	drainer := &blockingDrainer{}
	r := NewLifecycleRunner(drainer, Hooks{}, time.Second)
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped state, got %v", r.State())
	}
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("run after stop should fail")
	}
	if drainer.calls.Load() != 1 {
		t.Fatalf("expected 1 drain, got %d", drainer.calls.Load())
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	r := NewLifecycleRunner(&blockingDrainer{delay: 200 * time.Millisecond}, Hooks{}, 20*time.Millisecond)
	go func() { _ = r.Run(context.Background()) }()
	waitForState(t, r, StateRunning)
	err := r.Stop()
	if err == nil || err.Error() != "drain timeout" {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}
