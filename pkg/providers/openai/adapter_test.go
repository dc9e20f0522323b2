package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/resilience"
)

func newTestAdapter(srv *httptest.Server) *Adapter {
	a := NewAdapter("sk-test", "gpt-4o-mini")
	a.BaseURL = srv.URL
	a.Client = srv.Client()
	return a
}

const textResponseBody = `{
	"model": "gpt-4o-mini",
	"choices": [{"message": {"content": "MCP is Model Context Protocol."}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 42, "completion_tokens": 17}
}`

func TestGenerateSendsSystemMessageAndAuth(t *testing.T) {
	var captured map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(textResponseBody))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	resp, err := a.Generate(context.Background(), llm.Request{
		System:      "Answer questions about course materials.",
		Messages:    []llm.Message{llm.UserMessage("What is MCP?")},
		MaxTokens:   800,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	if headers.Get("Authorization") != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", headers.Get("Authorization"))
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model %v", captured["model"])
	}
	if captured["max_tokens"] != float64(800) || captured["temperature"] != float64(0) {
		t.Fatalf("unexpected sampling params %v %v", captured["max_tokens"], captured["temperature"])
	}

	messages := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system plus user message, got %d", len(messages))
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "Answer questions about course materials." {
		t.Fatalf("expected leading system message, got %v", system)
	}
	user := messages[1].(map[string]any)
	if user["role"] != "user" || user["content"] != "What is MCP?" {
		t.Fatalf("unexpected user message %v", user)
	}

	if resp.FirstText() != "MCP is Model Context Protocol." {
		t.Fatalf("unexpected text %q", resp.FirstText())
	}
	if resp.StopReason != llm.StopEndTurn {
		t.Fatalf("expected finish_reason stop to map to end turn, got %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 17 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestGenerateEncodesFunctionTools(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(textResponseBody))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	_, err := a.Generate(context.Background(), llm.Request{
		Messages: []llm.Message{llm.UserMessage("search please")},
		Tools: []llm.Tool{{
			Name:        "search_course_content",
			Description: "Search course materials",
			InputSchema: llm.Schema{
				Type: "object",
				Properties: map[string]llm.Property{
					"query": {Type: "string", Description: "What to search for"},
				},
				Required: []string{"query"},
			},
		}},
		MaxTokens: 800,
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	tools := captured["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("expected one tool, got %d", len(tools))
	}
	tool := tools[0].(map[string]any)
	if tool["type"] != "function" {
		t.Fatalf("unexpected tool type %v", tool["type"])
	}
	fn := tool["function"].(map[string]any)
	if fn["name"] != "search_course_content" {
		t.Fatalf("unexpected function %v", fn)
	}
	parameters := fn["parameters"].(map[string]any)
	if parameters["type"] != "object" {
		t.Fatalf("unexpected parameters type %v", parameters["type"])
	}
	required := parameters["required"].([]any)
	if len(required) != 1 || required[0] != "query" {
		t.Fatalf("unexpected required %v", required)
	}
	if captured["tool_choice"] != "auto" {
		t.Fatalf("unexpected tool choice %v", captured["tool_choice"])
	}
}

func TestGenerateEncodesToolRoundMessages(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(textResponseBody))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	_, err := a.Generate(context.Background(), llm.Request{
		Messages: []llm.Message{
			llm.UserMessage("What is MCP?"),
			llm.AssistantMessage([]llm.ContentBlock{
				llm.ToolUseBlock("call_1", "search_course_content", map[string]any{"query": "mcp"}),
			}),
			llm.ToolResultMessage([]llm.ContentBlock{
				llm.ToolResultBlock("call_1", "[MCP Course - Lesson 1]\nMCP is a protocol."),
			}),
		},
		MaxTokens: 800,
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}

	messages := captured["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("expected three messages, got %d", len(messages))
	}

	assistant := messages[1].(map[string]any)
	if assistant["role"] != "assistant" {
		t.Fatalf("unexpected role %v", assistant["role"])
	}
	if _, ok := assistant["content"]; ok {
		t.Fatalf("assistant message with only tool calls should omit content, got %v", assistant["content"])
	}
	calls := assistant["tool_calls"].([]any)
	call := calls[0].(map[string]any)
	if call["id"] != "call_1" || call["type"] != "function" {
		t.Fatalf("unexpected tool call %v", call)
	}
	fn := call["function"].(map[string]any)
	if fn["name"] != "search_course_content" {
		t.Fatalf("unexpected function name %v", fn["name"])
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(fn["arguments"].(string)), &args); err != nil {
		t.Fatalf("arguments should be a JSON string: %v", err)
	}
	if args["query"] != "mcp" {
		t.Fatalf("unexpected arguments %v", args)
	}

	result := messages[2].(map[string]any)
	if result["role"] != "tool" || result["tool_call_id"] != "call_1" {
		t.Fatalf("expected a tool message carrying the result, got %v", result)
	}
	if !strings.Contains(result["content"].(string), "MCP is a protocol.") {
		t.Fatalf("unexpected tool content %v", result["content"])
	}
}

func TestGenerateDecodesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{
				"message": {
					"content": null,
					"tool_calls": [{
						"id": "call_9",
						"type": "function",
						"function": {"name": "get_course_outline", "arguments": "{\"course_name\": \"MCP\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5}
		}`))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	resp, err := a.Generate(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.UserMessage("outline please")},
		MaxTokens: 800,
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if resp.StopReason != llm.StopToolUse {
		t.Fatalf("expected finish_reason tool_calls to map to tool use, got %q", resp.StopReason)
	}
	uses := resp.ToolUses()
	if len(uses) != 1 || uses[0].Name != "get_course_outline" || uses[0].ID != "call_9" {
		t.Fatalf("unexpected tool uses %+v", uses)
	}
	if uses[0].Input["course_name"] != "MCP" {
		t.Fatalf("unexpected input %+v", uses[0].Input)
	}
}

func TestGenerateRateLimitedReturnsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_exceeded"}}`))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	_, err := a.Generate(context.Background(), llm.Request{
		Messages:  []llm.Message{llm.UserMessage("hi")},
		MaxTokens: 800,
	})
	if err == nil {
		t.Fatalf("expected rate limit error")
	}
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit classification, got %T %v", err, err)
	}
}

func TestGenerateErrorBodySurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	_, err := a.Generate(context.Background(), llm.Request{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Fatalf("expected error body surfaced, got %v", err)
	}
}
