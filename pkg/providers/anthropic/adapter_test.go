package anthropic

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
	a := NewAdapter("sk-test", "claude-sonnet-4-20250514")
	a.BaseURL = srv.URL
	a.Client = srv.Client()
	return a
}

const textResponseBody = `{
	"content": [{"type": "text", "text": "MCP is Model Context Protocol."}],
	"stop_reason": "end_turn",
	"model": "claude-sonnet-4-20250514",
	"usage": {"input_tokens": 42, "output_tokens": 17}
}`

func TestGenerateSendsHeadersAndPayload(t *testing.T) {
	var captured map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
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

	if headers.Get("x-api-key") != "sk-test" {
		t.Fatalf("expected api key header, got %q", headers.Get("x-api-key"))
	}
	if headers.Get("anthropic-version") != "2023-06-01" {
		t.Fatalf("expected version header, got %q", headers.Get("anthropic-version"))
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type, got %q", headers.Get("Content-Type"))
	}

	if captured["model"] != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected model %v", captured["model"])
	}
	if captured["max_tokens"] != float64(800) || captured["temperature"] != float64(0) {
		t.Fatalf("unexpected sampling params %v %v", captured["max_tokens"], captured["temperature"])
	}
	if captured["system"] != "Answer questions about course materials." {
		t.Fatalf("unexpected system %v", captured["system"])
	}
	if _, ok := captured["tools"]; ok {
		t.Fatalf("expected no tools field without tools")
	}
	messages := captured["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	msg := messages[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "What is MCP?" {
		t.Fatalf("expected plain string content for a lone text block, got %v", msg)
	}

	if resp.FirstText() != "MCP is Model Context Protocol." {
		t.Fatalf("unexpected text %q", resp.FirstText())
	}
	if resp.StopReason != llm.StopEndTurn {
		t.Fatalf("unexpected stop reason %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 17 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestGenerateEncodesToolsAndChoice(t *testing.T) {
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
	if tool["name"] != "search_course_content" {
		t.Fatalf("unexpected tool %v", tool)
	}
	schema := tool["input_schema"].(map[string]any)
	if schema["type"] != "object" {
		t.Fatalf("unexpected schema type %v", schema["type"])
	}
	required := schema["required"].([]any)
	if len(required) != 1 || required[0] != "query" {
		t.Fatalf("unexpected required %v", required)
	}
	choice := captured["tool_choice"].(map[string]any)
	if choice["type"] != "auto" {
		t.Fatalf("unexpected tool choice %v", choice)
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
				llm.ToolUseBlock("toolu_1", "search_course_content", map[string]any{"query": "mcp"}),
			}),
			llm.ToolResultMessage([]llm.ContentBlock{
				llm.ToolResultBlock("toolu_1", "[MCP Course - Lesson 1]\nMCP is a protocol."),
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
	blocks := assistant["content"].([]any)
	use := blocks[0].(map[string]any)
	if use["type"] != "tool_use" || use["id"] != "toolu_1" || use["name"] != "search_course_content" {
		t.Fatalf("unexpected tool use block %v", use)
	}

	result := messages[2].(map[string]any)
	if result["role"] != "user" {
		t.Fatalf("expected tool results in a user message, got %v", result["role"])
	}
	resultBlocks := result["content"].([]any)
	rb := resultBlocks[0].(map[string]any)
	if rb["type"] != "tool_result" || rb["tool_use_id"] != "toolu_1" {
		t.Fatalf("unexpected tool result block %v", rb)
	}
	if !strings.Contains(rb["content"].(string), "MCP is a protocol.") {
		t.Fatalf("unexpected tool result content %v", rb["content"])
	}
}

func TestGenerateDecodesToolUseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Let me look that up."},
				{"type": "tool_use", "id": "toolu_9", "name": "get_course_outline", "input": {"course_name": "MCP"}}
			],
			"stop_reason": "tool_use",
			"model": "claude-sonnet-4-20250514",
			"usage": {"input_tokens": 10, "output_tokens": 5}
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
		t.Fatalf("unexpected stop reason %q", resp.StopReason)
	}
	uses := resp.ToolUses()
	if len(uses) != 1 || uses[0].Name != "get_course_outline" || uses[0].ID != "toolu_9" {
		t.Fatalf("unexpected tool uses %+v", uses)
	}
	if uses[0].Input["course_name"] != "MCP" {
		t.Fatalf("unexpected input %+v", uses[0].Input)
	}
	if resp.FirstText() != "Let me look that up." {
		t.Fatalf("unexpected leading text %q", resp.FirstText())
	}
}

func TestGenerateRateLimitedReturnsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_error"}}`))
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
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "max_tokens required"}}`))
	}))
	defer srv.Close()
	a := newTestAdapter(srv)

	_, err := a.Generate(context.Background(), llm.Request{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	if err == nil || !strings.Contains(err.Error(), "max_tokens required") {
		t.Fatalf("expected error body surfaced, got %v", err)
	}
}
