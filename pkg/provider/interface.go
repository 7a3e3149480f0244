package provider

import (
	"context"

	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
Adapter is the uniform generation contract every vendor implements. Adapter
instances hold their SDK client and may be shared between concurrent calls.
*/
type Adapter interface {
	Kind() Kind
	Model() string
	Capabilities() Capabilities
	GenerateResponse(ctx context.Context, msgs []message.Message, opts ...CallOption) (*GenerationResult, error)
	GenerateChat(ctx context.Context, msgs []message.Message) (*ChatResult, error)
}

/*
Streamer is implemented by adapters that can stream text deltas. onDelta is
called in order from the calling goroutine, and the assembled result is
returned once the stream ends.
*/
type Streamer interface {
	Stream(
		ctx context.Context,
		msgs []message.Message,
		onDelta func(string),
		opts ...CallOption,
	) (*GenerationResult, error)
}

/*
Capabilities are declared per adapter and decide which request features are
translated and which are dropped with a warning.
*/
type Capabilities struct {
	Tools          bool
	SystemChannel  bool
	Streaming      bool
	ResponseFormat bool
	Images         bool
}

/*
ToolCall is a model-requested function invocation. Arguments is always a JSON
encoded string, regardless of how the vendor returned them.
*/
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

/*
GenerationResult is the normalized vendor response. ToolCalls is only set
when the vendor response contained tool invocations, and Text may be empty
when the whole output was a tool call.
*/
type GenerationResult struct {
	Text      string     `json:"text"`
	Role      string     `json:"role"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Provider  Kind       `json:"provider"`
	Model     string     `json:"model"`
	Warnings  []string   `json:"warnings,omitempty"`
}

type ChatResult struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

const RoleAssistant = "assistant"
