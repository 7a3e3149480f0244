package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	deepseek "github.com/cohesion-org/deepseek-go"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
deepseekRoleMap compresses convertMessages' switch.
*/
var deepseekRoleMap = map[string]string{
	"system":    deepseek.ChatMessageRoleSystem,
	"user":      deepseek.ChatMessageRoleUser,
	"assistant": deepseek.ChatMessageRoleAssistant,
}

/*
DeepseekProvider is a provider for the DeepSeek API.
*/
type DeepseekProvider struct {
	adapter
	client  *deepseek.Client
	timeout time.Duration
}

type DeepseekProviderOption func(*DeepseekProvider)

func NewDeepseekProvider(model string, options ...DeepseekProviderOption) *DeepseekProvider {
	prvdr := &DeepseekProvider{
		adapter: adapter{
			kind:   KindDeepSeek,
			model:  model,
			params: DefaultParams(),
			caps: Capabilities{
				Tools:          true,
				Streaming:      true,
				ResponseFormat: true,
			},
		},
		timeout: 60 * time.Second,
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *DeepseekProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	req, warnings := prvdr.buildRequest(msgs, opts)
	return prvdr.complete(ctx, req, warnings)
}

func (prvdr *DeepseekProvider) complete(
	ctx context.Context, req *deepseek.ChatCompletionRequest, warnings []string,
) (*GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	response, err := prvdr.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, prvdr.fail(deepseekStatus(err), err)
	}

	if len(response.Choices) == 0 {
		return nil, prvdr.fail(0, fmt.Errorf("completion returned no choices"))
	}

	msg := response.Choices[0].Message

	var calls []ToolCall

	for _, call := range msg.ToolCalls {
		calls = append(calls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: encodeArguments(call.Function.Arguments),
		})
	}

	return prvdr.result(msg.Content, calls, warnings), nil
}

func (prvdr *DeepseekProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

/*
Stream streams text. Tool calls are not streamed, so tool-enabled calls are
answered in one piece.
*/
func (prvdr *DeepseekProvider) Stream(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts ...CallOption,
) (*GenerationResult, error) {
	req, warnings := prvdr.buildRequest(msgs, opts)

	if len(req.Tools) > 0 {
		result, err := prvdr.complete(ctx, req, warnings)

		if err == nil && result.Text != "" {
			onDelta(result.Text)
		}

		return result, err
	}

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	stream, err := prvdr.client.CreateChatCompletionStream(ctx, &deepseek.StreamChatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})

	if err != nil {
		return nil, prvdr.fail(deepseekStatus(err), err)
	}

	defer stream.Close()

	var sb strings.Builder

	for {
		response, err := stream.Recv()

		if stderrors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, prvdr.fail(0, err)
		}

		for _, choice := range response.Choices {
			if choice.Delta.Content != "" {
				sb.WriteString(choice.Delta.Content)
				onDelta(choice.Delta.Content)
			}
		}
	}

	return prvdr.result(sb.String(), nil, warnings), nil
}

func (prvdr *DeepseekProvider) buildRequest(
	msgs []message.Message, opts []CallOption,
) (*deepseek.ChatCompletionRequest, []string) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)

	req := &deepseek.ChatCompletionRequest{
		Model:       prvdr.model,
		Messages:    prvdr.convertMessages(msgs),
		Temperature: float32(cfg.params.Temperature),
		TopP:        float32(cfg.params.TopP),
		MaxTokens:   cfg.params.MaxTokens,
	}

	if len(cfg.tools) > 0 && cfg.toolChoice != "none" {
		req.Tools = prvdr.convertTools(cfg.tools)
	}

	if cfg.format.structured() {
		req.ResponseFormat = &deepseek.ResponseFormat{Type: "json_object"}
	}

	return req, warnings
}

func (prvdr *DeepseekProvider) convertMessages(msgs []message.Message) []deepseek.ChatCompletionMessage {
	_, converted := message.ToVendorFormat(msgs, message.VendorRules{PlainStringOnly: true})
	out := make([]deepseek.ChatCompletionMessage, 0, len(converted))

	for _, msg := range converted {
		if role, ok := deepseekRoleMap[msg.Role]; ok {
			out = append(out, deepseek.ChatCompletionMessage{Role: role, Content: msg.Text})
		}
	}

	return out
}

func (prvdr *DeepseekProvider) convertTools(tools []ToolDefinition) []deepseek.Tool {
	out := make([]deepseek.Tool, 0, len(tools))

	for _, tool := range tools {
		out = append(out, deepseek.Tool{
			Type: "function",
			Function: deepseek.Function{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters: &deepseek.FunctionParameters{
					Type:       "object",
					Properties: tool.Properties(),
					Required:   tool.Required(),
				},
			},
		})
	}

	return out
}

func WithDeepseekClient(settings Settings) DeepseekProviderOption {
	return func(prvdr *DeepseekProvider) {
		prvdr.params = settings.params()
		prvdr.timeout = settings.timeout()

		if settings.BaseURL != "" {
			prvdr.client = deepseek.NewClient(settings.APIKey, settings.BaseURL)
			return
		}

		prvdr.client = deepseek.NewClient(settings.APIKey)
	}
}

func deepseekStatus(err error) int {
	var apiErr *deepseek.APIError

	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
