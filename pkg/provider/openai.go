package provider

import (
	"context"
	stderrors "errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/theapemachine/mem0-go/pkg/message"
)

/*
roleMap compresses convertMessages' switch.
*/
var roleMap = map[string]func(string) openai.ChatCompletionMessageParamUnion{
	"system":    openai.SystemMessage[string],
	"user":      openai.UserMessage[string],
	"assistant": openai.AssistantMessage[string],
}

/*
openAICompatible holds the defaults of vendors that speak the OpenAI chat
completions protocol.
*/
var openAICompatible = map[Kind]struct {
	baseURL string
	apiKey  string
	images  bool
}{
	KindOpenAI:     {images: true},
	KindOpenRouter: {baseURL: "https://openrouter.ai/api/v1", images: true},
	KindDeepInfra:  {baseURL: "https://api.deepinfra.com/v1/openai"},
	KindLMStudio:   {baseURL: "http://localhost:1234/v1", apiKey: "lm-studio"},
}

/*
OpenAIProvider is a provider for the OpenAI API and every vendor exposing
the same chat completions protocol under another base URL.
*/
type OpenAIProvider struct {
	adapter
	client *openai.Client
}

type OpenAIProviderOption func(*OpenAIProvider)

func NewOpenAIProvider(kind Kind, model string, options ...OpenAIProviderOption) *OpenAIProvider {
	prvdr := &OpenAIProvider{
		adapter: adapter{
			kind:   kind,
			model:  model,
			params: DefaultParams(),
			caps: Capabilities{
				Tools:          true,
				Streaming:      true,
				ResponseFormat: true,
				Images:         openAICompatible[kind].images,
			},
		},
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func (prvdr *OpenAIProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	params, warnings := prvdr.buildParams(msgs, opts)

	completion, err := prvdr.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, prvdr.fail(openAIStatus(err), err)
	}

	if len(completion.Choices) == 0 {
		return nil, prvdr.fail(0, fmt.Errorf("completion returned no choices"))
	}

	return prvdr.toResult(completion.Choices[0].Message, warnings), nil
}

func (prvdr *OpenAIProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *OpenAIProvider) Stream(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts ...CallOption,
) (*GenerationResult, error) {
	params, warnings := prvdr.buildParams(msgs, opts)

	stream := prvdr.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, prvdr.fail(openAIStatus(err), err)
	}

	if len(acc.Choices) == 0 {
		return prvdr.result("", nil, warnings), nil
	}

	return prvdr.toResult(acc.Choices[0].Message, warnings), nil
}

func (prvdr *OpenAIProvider) buildParams(
	msgs []message.Message, opts []CallOption,
) (openai.ChatCompletionNewParams, []string) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(prvdr.model),
		Messages:    prvdr.convertMessages(msgs),
		Temperature: openai.Float(cfg.params.Temperature),
		MaxTokens:   openai.Int(int64(cfg.params.MaxTokens)),
		TopP:        openai.Float(cfg.params.TopP),
	}

	if len(cfg.tools) > 0 {
		params.Tools = prvdr.convertTools(cfg.tools)

		if cfg.toolChoice != "" {
			params.ToolChoice = openAIToolChoice(cfg.toolChoice)
		}
	}

	if cfg.format.structured() {
		params.ResponseFormat = prvdr.applySchema(cfg.format)
	}

	return params, warnings
}

func (prvdr *OpenAIProvider) toResult(
	msg openai.ChatCompletionMessage, warnings []string,
) *GenerationResult {
	var calls []ToolCall

	for _, call := range msg.ToolCalls {
		calls = append(calls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: encodeArguments(call.Function.Arguments),
		})
	}

	return prvdr.result(msg.Content, calls, warnings)
}

/*
convertMessages folds system turns in front of the first user turn and
keeps image parts as content parts on user messages.
*/
func (prvdr *OpenAIProvider) convertMessages(
	msgs []message.Message,
) []openai.ChatCompletionMessageParamUnion {
	_, converted := message.ToVendorFormat(msgs, message.VendorRules{Images: prvdr.caps.Images})
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(converted))

	for _, msg := range converted {
		if msg.Role == "user" && hasImageParts(msg.Parts) {
			out = append(out, openai.UserMessage(openAIContentParts(msg.Parts)))
			continue
		}

		if fn, ok := roleMap[msg.Role]; ok {
			out = append(out, fn(msg.Text))
		}
	}

	return out
}

func openAIContentParts(parts []message.Part) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))

	for _, part := range parts {
		switch part.Type {
		case message.PartTypeText:
			out = append(out, openai.TextContentPart(part.Text))
		case message.PartTypeImage:
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: part.ImageURL,
			}))
		}
	}

	return out
}

func (prvdr *OpenAIProvider) convertTools(
	tools []ToolDefinition,
) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Schema()),
			},
		})
	}

	return out
}

func (prvdr *OpenAIProvider) applySchema(
	format *ResponseFormat,
) openai.ChatCompletionNewParamsResponseFormatUnion {
	if format.Type != FormatJSONSchema || format.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	name := format.Name

	if name == "" {
		name = "schema"
	}

	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        name,
				Description: openai.String("The schema to use for your response"),
				Schema:      format.Schema,
				Strict:      openai.Bool(true),
			},
		},
	}
}

func openAIToolChoice(choice string) openai.ChatCompletionToolChoiceOptionUnionParam {
	switch choice {
	case "auto", "none", "required":
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice)}
	}

	return openai.ChatCompletionToolChoiceOptionUnionParam{
		OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
			Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice},
		},
	}
}

func openAIStatus(err error) int {
	var apiErr *openai.Error

	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}

func hasImageParts(parts []message.Part) bool {
	for _, part := range parts {
		if part.Type == message.PartTypeImage {
			return true
		}
	}

	return false
}

/*
WithOpenAIClient builds the SDK client from explicit settings, applying the
base URL and key defaults of OpenAI compatible vendors.
*/
func WithOpenAIClient(settings Settings) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		defaults := openAICompatible[prvdr.kind]
		prvdr.params = settings.params()

		apiKey := settings.APIKey

		if apiKey == "" {
			apiKey = defaults.apiKey
		}

		baseURL := settings.BaseURL

		if baseURL == "" {
			baseURL = defaults.baseURL
		}

		opts := []option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(settings.timeout()),
			option.WithMaxRetries(settings.MaxRetries),
		}

		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}

		if prvdr.kind == KindOpenRouter {
			if settings.SiteURL != "" {
				opts = append(opts, option.WithHeader("HTTP-Referer", settings.SiteURL))
			}

			if settings.AppName != "" {
				opts = append(opts, option.WithHeader("X-Title", settings.AppName))
			}
		}

		for key, value := range settings.Headers {
			opts = append(opts, option.WithHeader(key, value))
		}

		if settings.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(settings.HTTPClient))
		}

		client := openai.NewClient(opts...)
		prvdr.client = &client
	}
}
