package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/kirana/pkg/llm"
)

// LLMAdapter is a scripted completion endpoint for tests. Responses play in
// order with the last one repeating, and every request is captured for
// assertions on call counts, offered tools, and message logs.
type LLMAdapter struct {
	cfg LLMConfig

	mu       sync.Mutex
	calls    int
	requests []llm.Request
}

type LLMConfig struct {
	// ResponseText is a shorthand for a single terminal text response.
	ResponseText string
	// Responses, when set, scripts the call sequence; the last entry
	// repeats for any further calls.
	Responses []llm.Response
	// Err fails calls. With ErrOnCall zero every call fails; otherwise only
	// the 1-based call number fails.
	Err       error
	ErrOnCall int
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	a.requests = append(a.requests, copyRequest(req))
	a.mu.Unlock()

	if a.cfg.Err != nil && (a.cfg.ErrOnCall == 0 || a.cfg.ErrOnCall == call) {
		return llm.Response{}, a.cfg.Err
	}
	if len(a.cfg.Responses) > 0 {
		idx := call - 1
		if idx >= len(a.cfg.Responses) {
			idx = len(a.cfg.Responses) - 1
		}
		return a.cfg.Responses[idx], nil
	}
	return llm.Response{
		Content:    []llm.ContentBlock{llm.TextBlock(a.cfg.ResponseText)},
		StopReason: llm.StopEndTurn,
	}, nil
}

// Calls returns how many Generate calls the adapter has seen.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Requests returns a copy of every captured request in call order.
func (a *LLMAdapter) Requests() []llm.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Request, len(a.requests))
	copy(out, a.requests)
	return out
}

func copyRequest(req llm.Request) llm.Request {
	out := req
	out.Messages = make([]llm.Message, len(req.Messages))
	copy(out.Messages, req.Messages)
	out.Tools = make([]llm.Tool, len(req.Tools))
	copy(out.Tools, req.Tools)
	return out
}
