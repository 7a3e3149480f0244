package provider

import (
	"context"
	stderrors "errors"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	coherecore "github.com/cohere-ai/cohere-go/v2/core"
	cohereoption "github.com/cohere-ai/cohere-go/v2/option"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
cohereRoleMap compresses convertMessages' switch.
*/
var cohereRoleMap = map[string]func(string) *cohere.Message{
	"USER": func(text string) *cohere.Message {
		return &cohere.Message{Role: "USER", User: &cohere.ChatMessage{Message: text}}
	},
	"CHATBOT": func(text string) *cohere.Message {
		return &cohere.Message{Role: "CHATBOT", Chatbot: &cohere.ChatMessage{Message: text}}
	},
}

/*
CohereProvider is a provider for the Cohere chat API. System turns become
the preamble, earlier turns the chat history, and the last turn the message.
*/
type CohereProvider struct {
	adapter
	client  *cohereclient.Client
	timeout time.Duration
}

type CohereProviderOption func(*CohereProvider)

func NewCohereProvider(model string, options ...CohereProviderOption) *CohereProvider {
	prvdr := &CohereProvider{
		adapter: adapter{
			kind:   KindCohere,
			model:  model,
			params: DefaultParams(),
			caps: Capabilities{
				Tools:         true,
				SystemChannel: true,
			},
		},
		timeout: Settings{}.timeout(),
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *CohereProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	req, warnings := prvdr.buildRequest(msgs, opts)

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	response, err := prvdr.client.Chat(ctx, req)
	if err != nil {
		return nil, prvdr.fail(cohereStatus(err), err)
	}

	var calls []ToolCall

	for _, call := range response.GetToolCalls() {
		if call == nil {
			continue
		}

		calls = append(calls, ToolCall{
			Name:      call.Name,
			Arguments: encodeArguments(call.Parameters),
		})
	}

	return prvdr.result(response.GetText(), calls, warnings), nil
}

func (prvdr *CohereProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *CohereProvider) buildRequest(
	msgs []message.Message, opts []CallOption,
) (*cohere.ChatRequest, []string) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)
	preamble, history, last := prvdr.convertMessages(msgs)

	model := prvdr.model
	maxTokens := cfg.params.MaxTokens
	temperature := cfg.params.Temperature
	topP := cfg.params.TopP

	req := &cohere.ChatRequest{
		Message:     last,
		Model:       &model,
		ChatHistory: history,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		P:           &topP,
	}

	if preamble != "" {
		req.Preamble = &preamble
	}

	if len(cfg.tools) > 0 && cfg.toolChoice != "none" {
		req.Tools = prvdr.convertTools(cfg.tools)
	}

	return req, warnings
}

func (prvdr *CohereProvider) convertMessages(
	msgs []message.Message,
) (string, []*cohere.Message, string) {
	preamble, converted := message.ToVendorFormat(msgs, message.VendorRules{
		SystemChannel:   true,
		PlainStringOnly: true,
		RoleNames: map[message.Role]string{
			message.RoleUser:      "USER",
			message.RoleTool:      "USER",
			message.RoleAssistant: "CHATBOT",
		},
	})

	if len(converted) == 0 {
		return preamble, nil, ""
	}

	history := make([]*cohere.Message, 0, len(converted)-1)

	for _, msg := range converted[:len(converted)-1] {
		if fn, ok := cohereRoleMap[msg.Role]; ok {
			history = append(history, fn(msg.Text))
		}
	}

	return preamble, history, converted[len(converted)-1].Text
}

func (prvdr *CohereProvider) convertTools(tools []ToolDefinition) []*cohere.Tool {
	out := make([]*cohere.Tool, 0, len(tools))

	for _, tool := range tools {
		required := make(map[string]bool)

		for _, name := range tool.Required() {
			required[name] = true
		}

		paramDefs := make(map[string]*cohere.ToolParameterDefinitionsValue)

		for name, prop := range tool.Properties() {
			propMap, _ := prop.(map[string]any)
			kind, _ := propMap["type"].(string)
			desc, _ := propMap["description"].(string)

			if kind == "" {
				kind = "str"
			}

			isRequired := required[name]

			paramDefs[name] = &cohere.ToolParameterDefinitionsValue{
				Description: cohere.String(desc),
				Type:        kind,
				Required:    &isRequired,
			}
		}

		out = append(out, &cohere.Tool{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParameterDefinitions: paramDefs,
		})
	}

	return out
}

func WithCohereClient(settings Settings) CohereProviderOption {
	return func(prvdr *CohereProvider) {
		prvdr.params = settings.params()
		prvdr.timeout = settings.timeout()

		opts := []cohereoption.RequestOption{
			cohereoption.WithToken(settings.APIKey),
		}

		if settings.BaseURL != "" {
			opts = append(opts, cohereoption.WithBaseURL(settings.BaseURL))
		}

		if settings.HTTPClient != nil {
			opts = append(opts, cohereoption.WithHTTPClient(settings.HTTPClient))
		}

		prvdr.client = cohereclient.NewClient(opts...)
	}
}

func cohereStatus(err error) int {
	var apiErr *coherecore.APIError

	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
