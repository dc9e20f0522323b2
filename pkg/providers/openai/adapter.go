package openai

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

// Adapter speaks the chat completions API with function calling. Tool
// rounds translate both ways: tool_use blocks become assistant tool_calls
// on the wire, and tool_result blocks become role "tool" messages.
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
		BaseURL: "https://api.openai.com/v1",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	body, err := a.buildRequest(req)
	if err != nil {
		return llm.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", body)
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
		return llm.Response{}, resilience.RateLimitError{Provider: "openai", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errors.New(string(body))
	}
	var payload completionResponse
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
		"messages":    encodeMessages(req.System, req.Messages),
	}
	if len(req.Tools) > 0 {
		body["tools"] = encodeTools(req.Tools)
		body["tool_choice"] = "auto"
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

// encodeMessages flattens block-structured messages into the chat shape.
// The system prompt leads as its own message, and every tool_result block
// becomes a separate role "tool" message so it lands directly after the
// assistant turn that requested it.
func encodeMessages(system string, messages []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages)+1)
	if system != "" {
		out = append(out, map[string]any{"role": "system", "content": system})
	}
	for _, m := range messages {
		if m.Role == llm.RoleAssistant {
			out = append(out, encodeAssistant(m))
			continue
		}
		var text string
		for _, b := range m.Content {
			switch b.Type {
			case llm.BlockToolResult:
				out = append(out, map[string]any{
					"role":         "tool",
					"tool_call_id": b.ToolUseID,
					"content":      b.Content,
				})
			case llm.BlockText:
				if text != "" {
					text += "\n"
				}
				text += b.Text
			}
		}
		if text != "" {
			out = append(out, map[string]any{"role": m.Role, "content": text})
		}
	}
	return out
}

func encodeAssistant(m llm.Message) map[string]any {
	msg := map[string]any{"role": llm.RoleAssistant}
	var text string
	var calls []map[string]any
	for _, b := range m.Content {
		switch b.Type {
		case llm.BlockText:
			if text != "" {
				text += "\n"
			}
			text += b.Text
		case llm.BlockToolUse:
			args := "{}"
			if b.Input != nil {
				if enc, err := json.Marshal(b.Input); err == nil {
					args = string(enc)
				}
			}
			calls = append(calls, map[string]any{
				"id":   b.ID,
				"type": "function",
				"function": map[string]any{
					"name":      b.Name,
					"arguments": args,
				},
			})
		}
	}
	if text != "" {
		msg["content"] = text
	}
	if len(calls) > 0 {
		msg["tool_calls"] = calls
	}
	return msg
}

func encodeTools(tools []llm.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		properties := make(map[string]any, len(t.InputSchema.Properties))
		for name, prop := range t.InputSchema.Properties {
			properties[name] = map[string]any{"type": prop.Type, "description": prop.Description}
		}
		parameters := map[string]any{
			"type":       t.InputSchema.Type,
			"properties": properties,
		}
		if len(t.InputSchema.Required) > 0 {
			parameters["required"] = t.InputSchema.Required
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  parameters,
			},
		})
	}
	return out
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

type completionResponse struct {
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireMessage struct {
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (r completionResponse) toResponse() llm.Response {
	resp := llm.Response{
		Model: r.Model,
		Usage: llm.Usage{InputTokens: r.Usage.PromptTokens, OutputTokens: r.Usage.CompletionTokens},
	}
	if len(r.Choices) == 0 {
		return resp
	}
	choice := r.Choices[0]
	resp.StopReason = mapFinishReason(choice.FinishReason)
	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, llm.TextBlock(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		input := map[string]any{}
		_ = json.Unmarshal([]byte(call.Function.Arguments), &input)
		resp.Content = append(resp.Content, llm.ToolUseBlock(call.ID, call.Function.Name, input))
	}
	return resp
}

// mapFinishReason translates chat finish reasons onto the stop reasons the
// round loop switches on. Unknown values pass through untouched.
func mapFinishReason(reason string) string {
	switch reason {
	case "tool_calls":
		return llm.StopToolUse
	case "stop":
		return llm.StopEndTurn
	case "length":
		return llm.StopMaxTokens
	default:
		return reason
	}
}

var _ llm.LLMAdapter = (*Adapter)(nil)
