package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/kirana/pkg/errorsx"
	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/metrics"
	"github.com/harunnryd/kirana/pkg/redact"
	"github.com/harunnryd/kirana/pkg/resilience"
)

const (
	DefaultMaxRounds = 2
	DefaultMaxTokens = 800
)

type Config struct {
	SystemPrompt string
	MaxRounds    int
	MaxTokens    int
	Temperature  float64
	Dispatcher   *ToolDispatcher
}

// Request is one orchestration call. History is opaque text appended to the
// system context. Tool calls execute only when both Tools and Registry are
// supplied.
type Request struct {
	Query    string
	History  string
	Tools    []llm.Tool
	Registry llm.ToolRegistry
}

// Orchestrator drives the round-bounded tool-calling protocol against a
// completion endpoint. One Generate call is one protocol run; runs share no
// state and may execute concurrently.
type Orchestrator struct {
	adapter      llm.LLMAdapter
	systemPrompt string
	maxRounds    int
	maxTokens    int
	temperature  float64
	dispatcher   *ToolDispatcher
	obs          metrics.Observer
	listeners    []StateListener
}

func New(adapter llm.LLMAdapter, cfg Config) *Orchestrator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Orchestrator{
		adapter:      adapter,
		systemPrompt: cfg.SystemPrompt,
		maxRounds:    cfg.MaxRounds,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		dispatcher:   cfg.Dispatcher,
	}
}

// SetObserver allows metrics emission for orchestration events.
func (o *Orchestrator) SetObserver(obs metrics.Observer) { o.obs = obs }

// AddStateListener observes the state machine of every subsequent run.
func (o *Orchestrator) AddStateListener(l StateListener) {
	o.listeners = append(o.listeners, l)
}

// Generate runs the protocol to a final text answer. The initial call offers
// tools when present; tool-use responses enter the round loop; the loop
// re-offers tools on every continuation and stops at the round budget,
// returning the last response's leading text even when the model still wants
// tools. Endpoint and tool failures abort the run with the failing round
// identified.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (string, error) {
	runID := uuid.NewString()
	machine := newStateMachine()
	for _, l := range o.listeners {
		machine.AddListener(l)
	}

	system := o.systemPrompt
	if req.History != "" {
		system = o.systemPrompt + "\n\nPrevious conversation:\n" + req.History
	}

	slog.Info("generate_start", "run_id", runID, "query", redact.Text(req.Query), "tool_count", len(req.Tools), "has_history", req.History != "")

	if err := machine.Transition(StateAwaitingCompletion, "initial completion call"); err != nil {
		return "", err
	}

	messages := []llm.Message{llm.UserMessage(req.Query)}
	initial := llm.Request{
		System:      system,
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
	if len(req.Tools) > 0 {
		initial.Tools = req.Tools
	}

	callStart := time.Now()
	resp, err := o.adapter.Generate(ctx, initial)
	if err != nil {
		return "", o.fail(machine, runID, 0, errorsx.Wrap(fmt.Errorf("completion call failed: %w", err), completionReason(err)))
	}
	o.recordCompletion(runID, 0, time.Since(callStart), resp)
	if len(resp.Content) == 0 {
		return "", o.fail(machine, runID, 0, errorsx.Wrap(errors.New("completion returned empty response content"), errorsx.ReasonLLMEmptyResponse))
	}

	// Tool-use without a registry is the degraded fallback: requests are
	// ignored and any leading text is returned as-is.
	if resp.StopReason != llm.StopToolUse || req.Registry == nil {
		return o.finish(machine, runID, 0, resp)
	}

	current := resp
	rounds := 0
	for rounds < o.maxRounds {
		rounds++

		if err := machine.Transition(StateExecutingTools, "tool use requested"); err != nil {
			return "", o.fail(machine, runID, rounds, err)
		}
		messages = append(messages, llm.AssistantMessage(current.Content))

		calls := current.ToolUses()
		slog.Info("tool_round", "run_id", runID, "round", rounds, "call_count", len(calls))
		results, err := o.executeTools(ctx, req.Registry, calls)
		if err != nil {
			o.recordToolBatch(runID, rounds, calls, err)
			return "", o.fail(machine, runID, rounds, errorsx.Wrap(fmt.Errorf("tool execution failed in round %d: %w", rounds, err), toolReason(err)))
		}
		o.recordToolBatch(runID, rounds, calls, nil)
		if len(results) > 0 {
			messages = append(messages, llm.ToolResultMessage(results))
		}

		if err := machine.Transition(StateAwaitingCompletion, "tool results ready"); err != nil {
			return "", o.fail(machine, runID, rounds, err)
		}

		// Tools ride along on every continuation; dropping them would
		// silently disable further tool use.
		next := llm.Request{
			System:      system,
			Messages:    messages,
			Tools:       req.Tools,
			MaxTokens:   o.maxTokens,
			Temperature: o.temperature,
		}
		callStart = time.Now()
		current, err = o.adapter.Generate(ctx, next)
		if err != nil {
			return "", o.fail(machine, runID, rounds, errorsx.Wrap(fmt.Errorf("completion call failed in round %d: %w", rounds, err), completionReason(err)))
		}
		o.recordCompletion(runID, rounds, time.Since(callStart), current)
		if len(current.Content) == 0 {
			return "", o.fail(machine, runID, rounds, errorsx.Wrap(fmt.Errorf("completion returned empty response content in round %d", rounds), errorsx.ReasonLLMEmptyResponse))
		}

		if current.StopReason != llm.StopToolUse {
			return o.finish(machine, runID, rounds, current)
		}
	}

	// Budget spent. The model may still want tools; return the text we have
	// rather than forcing an extra round, so round counts stay observable.
	slog.Warn("round_budget_exhausted", "run_id", runID, "rounds", o.maxRounds, "stop_reason", current.StopReason)
	return o.finish(machine, runID, rounds, current)
}

func (o *Orchestrator) executeTools(ctx context.Context, registry llm.ToolRegistry, calls []llm.ContentBlock) ([]llm.ContentBlock, error) {
	if o.dispatcher != nil {
		return o.dispatcher.ExecuteBatch(ctx, registry, calls)
	}
	var results []llm.ContentBlock
	for _, call := range calls {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text, err := registry.Execute(call.Name, call.Input)
		if err != nil {
			return nil, err
		}
		results = append(results, llm.ToolResultBlock(call.ID, text))
	}
	return results, nil
}

func (o *Orchestrator) finish(machine *stateMachine, runID string, rounds int, resp llm.Response) (string, error) {
	if err := machine.Transition(StateDone, "completion"); err != nil {
		return "", err
	}
	text := resp.FirstText()
	slog.Info("generate_done", "run_id", runID, "rounds", rounds, "stop_reason", resp.StopReason)
	o.recordWithFields("llm_output_text", runID, rounds, map[string]any{"text": redact.Text(text)})
	o.record("llm_done", runID, rounds)
	return text, nil
}

func (o *Orchestrator) fail(machine *stateMachine, runID string, round int, err error) error {
	_ = machine.Transition(StateFailed, err.Error())
	slog.Error("generate_error", "run_id", runID, "round", round, "reason_code", string(errorsx.Reason(err)), "error", err)
	o.recordWithFields("generate_error", runID, round, map[string]any{"error": err.Error()})
	return err
}

func completionReason(err error) errorsx.ReasonCode {
	if resilience.IsRateLimit(err) {
		return errorsx.ReasonLLMRateLimit
	}
	return errorsx.ReasonLLMGenerate
}

func toolReason(err error) errorsx.ReasonCode {
	if errors.Is(err, ErrToolTimeout) {
		return errorsx.ReasonToolTimeout
	}
	return errorsx.ReasonToolExecution
}

func (o *Orchestrator) recordCompletion(runID string, round int, latency time.Duration, resp llm.Response) {
	o.recordWithFields("completion_round", runID, round, map[string]any{
		"latency_ms":    latency.Milliseconds(),
		"stop_reason":   resp.StopReason,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	})
}

func (o *Orchestrator) recordToolBatch(runID string, round int, calls []llm.ContentBlock, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrToolTimeout) {
			status = "timeout"
		}
	}
	for _, call := range calls {
		fields := map[string]any{
			"tool":   call.Name,
			"status": status,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		o.recordWithFields("tool_result", runID, round, fields)
	}
}

func (o *Orchestrator) record(name, runID string, round int) {
	if o.obs == nil {
		return
	}
	o.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: o.tags(runID, round),
	})
}

func (o *Orchestrator) recordWithFields(name, runID string, round int, fields map[string]any) {
	if o.obs == nil {
		return
	}
	o.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   o.tags(runID, round),
		Fields: fields,
	})
}

func (o *Orchestrator) tags(runID string, round int) map[string]string {
	tags := map[string]string{"run_id": runID, "component": "orchestrator"}
	if o.adapter != nil {
		tags["provider"] = o.adapter.Name()
	}
	if round > 0 {
		tags["round"] = strconv.Itoa(round)
	}
	return tags
}
