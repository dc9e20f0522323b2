package llm

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block discriminators. Blocks are a tagged union; consumers switch
// on Type rather than probing fields.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Stop reasons reported by completion endpoints. Anything other than
// StopToolUse means the model considers the turn finished.
const (
	StopToolUse   = "tool_use"
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
)

type Tool struct {
	Name        string
	Description string
	InputSchema Schema
}

type Schema struct {
	Type       string
	Properties map[string]Property
	Required   []string
}

type Property struct {
	Type        string
	Description string
}

type ContentBlock struct {
	Type string

	// Type == BlockText
	Text string

	// Type == BlockToolUse
	ID    string
	Name  string
	Input map[string]any

	// Type == BlockToolResult
	ToolUseID string
	Content   string
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

type Message struct {
	Role    string
	Content []ContentBlock
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

func AssistantMessage(blocks []ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// ToolResultMessage carries a round's tool results back to the model. The
// messages API expects results inside a user-role message.
func ToolResultMessage(results []ContentBlock) Message {
	return Message{Role: RoleUser, Content: results}
}

type Request struct {
	System      string
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

type Response struct {
	Content    []ContentBlock
	StopReason string
	Model      string
	Usage      Usage
}

// FirstText returns the text of the first text-bearing content block, or ""
// when the response carries none.
func (r Response) FirstText() string {
	for _, b := range r.Content {
		if b.Type == BlockText {
			return b.Text
		}
	}
	return ""
}

// ToolUses returns the tool-call requests in block order.
func (r Response) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

type LLMAdapter interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}
