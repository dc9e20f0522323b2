package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/resilience"
)

const apiVersion = "2023-06-01"

type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.anthropic.com",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	body, err := a.buildRequest(req)
	if err != nil {
		return llm.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/messages", body)
	if err != nil {
		return llm.Response{}, err
	}
	a.applyHeaders(httpReq)
	resp, err := a.client().Do(httpReq)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.RateLimitError{Provider: "anthropic", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errors.New(string(body))
	}
	var payload messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, err
	}
	return payload.toResponse(), nil
}

func (a *Adapter) buildRequest(req llm.Request) (*bytes.Buffer, error) {
	body := map[string]any{
		"model":       a.Model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages":    encodeMessages(req.Messages),
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if len(req.Tools) > 0 {
		body["tools"] = encodeTools(req.Tools)
		body["tool_choice"] = map[string]any{"type": "auto"}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func encodeMessages(messages []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		// A lone text block is sent as plain string content.
		if len(m.Content) == 1 && m.Content[0].Type == llm.BlockText {
			out = append(out, map[string]any{"role": m.Role, "content": m.Content[0].Text})
			continue
		}
		blocks := make([]map[string]any, 0, len(m.Content))
		for _, b := range m.Content {
			blocks = append(blocks, encodeBlock(b))
		}
		out = append(out, map[string]any{"role": m.Role, "content": blocks})
	}
	return out
}

func encodeBlock(b llm.ContentBlock) map[string]any {
	switch b.Type {
	case llm.BlockToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return map[string]any{"type": "tool_use", "id": b.ID, "name": b.Name, "input": input}
	case llm.BlockToolResult:
		return map[string]any{"type": "tool_result", "tool_use_id": b.ToolUseID, "content": b.Content}
	default:
		return map[string]any{"type": "text", "text": b.Text}
	}
}

func encodeTools(tools []llm.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		properties := make(map[string]any, len(t.InputSchema.Properties))
		for name, prop := range t.InputSchema.Properties {
			properties[name] = map[string]any{"type": prop.Type, "description": prop.Description}
		}
		schema := map[string]any{
			"type":       t.InputSchema.Type,
			"properties": properties,
		}
		if len(t.InputSchema.Required) > 0 {
			schema["required"] = t.InputSchema.Required
		}
		out = append(out, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": schema,
		})
	}
	return out
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

type messageResponse struct {
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Model      string      `json:"model"`
	Usage      wireUsage   `json:"usage"`
}

type wireBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string         `json:"tool_use_id"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (r messageResponse) toResponse() llm.Response {
	resp := llm.Response{
		StopReason: r.StopReason,
		Model:      r.Model,
		Usage:      llm.Usage{InputTokens: r.Usage.InputTokens, OutputTokens: r.Usage.OutputTokens},
	}
	for _, b := range r.Content {
		switch b.Type {
		case "tool_use":
			resp.Content = append(resp.Content, llm.ToolUseBlock(b.ID, b.Name, b.Input))
		case "text":
			resp.Content = append(resp.Content, llm.TextBlock(b.Text))
		}
	}
	return resp
}

var _ llm.LLMAdapter = (*Adapter)(nil)
