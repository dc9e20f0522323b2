package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/kirana/pkg/llm"
)

var ErrToolTimeout = errors.New("tool timeout")

type ToolDispatcherOptions struct {
	Concurrency int
	Timeout     time.Duration
}

// ToolDispatcher executes one round's tool calls through a bounded worker
// pool. The calls of a round are independent; each result keeps its
// correlation id. There is no retry path: a failing tool fails the batch.
type ToolDispatcher struct {
	opts ToolDispatcherOptions
}

func NewToolDispatcher(opts ToolDispatcherOptions) *ToolDispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &ToolDispatcher{opts: opts}
}

// ExecuteBatch runs every tool_use block against the registry and returns
// one tool_result block per call, in request order.
func (d *ToolDispatcher) ExecuteBatch(ctx context.Context, registry llm.ToolRegistry, calls []llm.ContentBlock) ([]llm.ContentBlock, error) {
	if registry == nil {
		return nil, errors.New("missing registry")
	}
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]llm.ContentBlock, len(calls))
	errs := make([]error, len(calls))
	sem := make(chan struct{}, d.opts.Concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ContentBlock) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			text, err := d.callWithTimeout(registry, call.Name, call.Input)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = llm.ToolResultBlock(call.ID, text)
		}(i, call)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (d *ToolDispatcher) callWithTimeout(registry llm.ToolRegistry, name string, args map[string]any) (string, error) {
	if d.opts.Timeout <= 0 {
		return registry.Execute(name, args)
	}
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		res, err := registry.Execute(name, args)
		ch <- result{text: res, err: err}
	}()
	select {
	case out := <-ch:
		return out.text, out.err
	case <-time.After(d.opts.Timeout):
		return "", ErrToolTimeout
	}
}
