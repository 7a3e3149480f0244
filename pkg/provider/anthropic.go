package provider

import (
	"context"
	stderrors "errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/charmbracelet/log"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
anthropicRoleMap compresses convertMessages' switch.
*/
var anthropicRoleMap = map[string]func(string) anthropic.MessageParam{
	"user": func(text string) anthropic.MessageParam {
		return anthropic.NewUserMessage(anthropic.NewTextBlock(text))
	},
	"assistant": func(text string) anthropic.MessageParam {
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(text))
	},
}

/*
AnthropicProvider is a provider for the Anthropic Messages API. System turns
travel in the dedicated system field.
*/
type AnthropicProvider struct {
	adapter
	client *anthropic.Client
}

type AnthropicProviderOption func(*AnthropicProvider)

func NewAnthropicProvider(model string, options ...AnthropicProviderOption) *AnthropicProvider {
	prvdr := &AnthropicProvider{
		adapter: adapter{
			kind:   KindAnthropic,
			model:  model,
			params: DefaultParams(),
			caps: Capabilities{
				Tools:         true,
				SystemChannel: true,
				Streaming:     true,
			},
		},
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *AnthropicProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	params, warnings := prvdr.buildParams(msgs, opts)

	msg, err := prvdr.client.Messages.New(ctx, params)
	if err != nil {
		return nil, prvdr.fail(anthropicStatus(err), err)
	}

	return prvdr.toResult(msg, warnings), nil
}

func (prvdr *AnthropicProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *AnthropicProvider) Stream(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts ...CallOption,
) (*GenerationResult, error) {
	params, warnings := prvdr.buildParams(msgs, opts)

	stream := prvdr.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			log.Error("failed to accumulate message event", "error", err)
			continue
		}

		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok && delta.Delta.Text != "" {
			onDelta(delta.Delta.Text)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, prvdr.fail(anthropicStatus(err), err)
	}

	return prvdr.toResult(&msg, warnings), nil
}

func (prvdr *AnthropicProvider) buildParams(
	msgs []message.Message, opts []CallOption,
) (anthropic.MessageNewParams, []string) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)
	system, converted := message.ToVendorFormat(msgs, message.VendorRules{SystemChannel: true})

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(prvdr.model),
		MaxTokens:   int64(cfg.params.MaxTokens),
		Messages:    prvdr.convertMessages(converted),
		Temperature: anthropic.Float(cfg.params.Temperature),
		TopP:        anthropic.Float(cfg.params.TopP),
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(cfg.tools) > 0 && cfg.toolChoice != "none" {
		params.Tools = prvdr.convertTools(cfg.tools)

		if choice, ok := anthropicToolChoice(cfg.toolChoice); ok {
			params.ToolChoice = choice
		}
	}

	return params, warnings
}

func (prvdr *AnthropicProvider) toResult(msg *anthropic.Message, warnings []string) *GenerationResult {
	var (
		text  string
		calls []ToolCall
	)

	for _, block := range msg.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += block.Text
		case anthropic.ToolUseBlock:
			calls = append(calls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: encodeArguments(block.Input),
			})
		}
	}

	return prvdr.result(text, calls, warnings)
}

func (prvdr *AnthropicProvider) convertMessages(
	converted []message.VendorMessage,
) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(converted))

	for _, msg := range converted {
		if fn, ok := anthropicRoleMap[msg.Role]; ok {
			out = append(out, fn(msg.Text))
		}
	}

	return out
}

func (prvdr *AnthropicProvider) convertTools(
	tools []ToolDefinition,
) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		toolParam := anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: tool.Properties(),
				Required:   tool.Required(),
			},
		}

		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return out
}

func anthropicToolChoice(choice string) (anthropic.ToolChoiceUnionParam, bool) {
	switch choice {
	case "":
		return anthropic.ToolChoiceUnionParam{}, false
	case "auto":
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}, true
	case "required", "any":
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}, true
	}

	return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: choice}}, true
}

func anthropicStatus(err error) int {
	var apiErr *anthropic.Error

	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}

func WithAnthropicClient(settings Settings) AnthropicProviderOption {
	return func(prvdr *AnthropicProvider) {
		prvdr.params = settings.params()

		opts := []option.RequestOption{
			option.WithAPIKey(settings.APIKey),
			option.WithRequestTimeout(settings.timeout()),
			option.WithMaxRetries(settings.MaxRetries),
		}

		if settings.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(settings.BaseURL))
		}

		for key, value := range settings.Headers {
			opts = append(opts, option.WithHeader(key, value))
		}

		if settings.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(settings.HTTPClient))
		}

		client := anthropic.NewClient(opts...)
		prvdr.client = &client
	}
}
