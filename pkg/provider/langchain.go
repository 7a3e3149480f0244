package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/tmc/langchaingo/llms"
)

var langChainRoleMap = map[string]llms.ChatMessageType{
	"system":    llms.ChatMessageTypeSystem,
	"user":      llms.ChatMessageTypeHuman,
	"assistant": llms.ChatMessageTypeAI,
}

/*
LangChainProvider wraps any langchaingo model, so vendors without a native
adapter can still be used.
*/
type LangChainProvider struct {
	adapter
	llm     llms.Model
	timeout time.Duration
}

func NewLangChainProvider(model string, llm llms.Model, settings Settings) *LangChainProvider {
	return &LangChainProvider{
		adapter: adapter{
			kind:   KindLangChain,
			model:  model,
			params: settings.params(),
			caps: Capabilities{
				Tools:          true,
				SystemChannel:  true,
				Streaming:      true,
				ResponseFormat: true,
				Images:         true,
			},
		},
		llm:     llm,
		timeout: settings.timeout(),
	}
}

func (prvdr *LangChainProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	return prvdr.generate(ctx, msgs, nil, opts)
}

func (prvdr *LangChainProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *LangChainProvider) Stream(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts ...CallOption,
) (*GenerationResult, error) {
	return prvdr.generate(ctx, msgs, onDelta, opts)
}

func (prvdr *LangChainProvider) generate(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts []CallOption,
) (*GenerationResult, error) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)

	options := []llms.CallOption{
		llms.WithTemperature(cfg.params.Temperature),
		llms.WithMaxTokens(cfg.params.MaxTokens),
		llms.WithTopP(cfg.params.TopP),
		llms.WithTopK(cfg.params.TopK),
	}

	if prvdr.model != "" && prvdr.model != KindLangChain.DefaultModel() {
		options = append(options, llms.WithModel(prvdr.model))
	}

	if len(cfg.tools) > 0 && cfg.toolChoice != "none" {
		options = append(options, llms.WithTools(prvdr.convertTools(cfg.tools)))

		if cfg.toolChoice != "" {
			options = append(options, llms.WithToolChoice(cfg.toolChoice))
		}
	}

	if cfg.format.structured() {
		options = append(options, llms.WithJSONMode())
	}

	var sb strings.Builder

	if onDelta != nil {
		options = append(options, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) > 0 {
				sb.Write(chunk)
				onDelta(string(chunk))
			}

			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	response, err := prvdr.llm.GenerateContent(ctx, prvdr.convertMessages(msgs), options...)
	if err != nil {
		return nil, prvdr.fail(0, err)
	}

	if len(response.Choices) == 0 {
		return nil, prvdr.fail(0, fmt.Errorf("model returned no choices"))
	}

	choice := response.Choices[0]

	var calls []ToolCall

	for _, call := range choice.ToolCalls {
		if call.FunctionCall == nil {
			continue
		}

		calls = append(calls, ToolCall{
			ID:        call.ID,
			Name:      call.FunctionCall.Name,
			Arguments: encodeArguments(call.FunctionCall.Arguments),
		})
	}

	text := choice.Content

	// A model that ignores the streaming func still answers in one piece.
	if onDelta != nil && sb.Len() == 0 && text != "" {
		onDelta(text)
	}

	return prvdr.result(text, calls, warnings), nil
}

func (prvdr *LangChainProvider) convertMessages(msgs []message.Message) []llms.MessageContent {
	system, converted := message.ToVendorFormat(msgs, message.VendorRules{
		SystemChannel: true,
		Images:        true,
	})

	out := make([]llms.MessageContent, 0, len(converted)+1)

	if system != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}

	for _, msg := range converted {
		role, ok := langChainRoleMap[msg.Role]
		if !ok {
			role = llms.ChatMessageTypeHuman
		}

		content := llms.MessageContent{Role: role}

		for _, part := range msg.Parts {
			switch part.Type {
			case message.PartTypeText:
				content.Parts = append(content.Parts, llms.TextContent{Text: part.Text})
			case message.PartTypeImage:
				content.Parts = append(content.Parts, llms.ImageURLContent{URL: part.ImageURL})
			}
		}

		if len(content.Parts) == 0 {
			content.Parts = []llms.ContentPart{llms.TextContent{Text: msg.Text}}
		}

		out = append(out, content)
	}

	return out
}

func (prvdr *LangChainProvider) convertTools(tools []ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))

	for _, tool := range tools {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema(),
			},
		})
	}

	return out
}
