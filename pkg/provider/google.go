package provider

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
	"google.golang.org/genai"
)

/*
googleSchemaTypes maps JSON schema types onto Gemini schema types.
*/
var googleSchemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

/*
GoogleProvider is a provider for the Gemini API.
*/
type GoogleProvider struct {
	adapter
	client  *genai.Client
	timeout time.Duration
}

/*
NewGoogleProvider builds the client without contacting the API.
*/
func NewGoogleProvider(ctx context.Context, model string, settings Settings) (*GoogleProvider, error) {
	cfg := &genai.ClientConfig{
		APIKey:     settings.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: settings.HTTPClient,
	}

	if settings.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: settings.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, &errors.ConfigurationError{Field: "google.api_key", Reason: "cannot build the Gemini client", Err: err}
	}

	return &GoogleProvider{
		adapter: adapter{
			kind:   KindGoogle,
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
		client:  client,
		timeout: settings.timeout(),
	}, nil
}

func (prvdr *GoogleProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	contents, config, warnings := prvdr.buildRequest(msgs, opts)

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	resp, err := prvdr.client.Models.GenerateContent(ctx, prvdr.model, contents, config)
	if err != nil {
		return nil, prvdr.fail(googleStatus(err), err)
	}

	text, calls := prvdr.collect(resp)
	return prvdr.result(text, calls, warnings), nil
}

func (prvdr *GoogleProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *GoogleProvider) Stream(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts ...CallOption,
) (*GenerationResult, error) {
	contents, config, warnings := prvdr.buildRequest(msgs, opts)

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	var (
		sb    strings.Builder
		calls []ToolCall
	)

	for resp, err := range prvdr.client.Models.GenerateContentStream(ctx, prvdr.model, contents, config) {
		if err != nil {
			return nil, prvdr.fail(googleStatus(err), err)
		}

		text, chunkCalls := prvdr.collect(resp)

		if text != "" {
			sb.WriteString(text)
			onDelta(text)
		}

		calls = append(calls, chunkCalls...)
	}

	return prvdr.result(sb.String(), calls, warnings), nil
}

func (prvdr *GoogleProvider) buildRequest(
	msgs []message.Message, opts []CallOption,
) ([]*genai.Content, *genai.GenerateContentConfig, []string) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)

	system, converted := message.ToVendorFormat(msgs, message.VendorRules{
		SystemChannel: true,
		Images:        true,
		RoleNames:     map[message.Role]string{message.RoleAssistant: genai.RoleModel},
	})

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(cfg.params.Temperature)),
		MaxOutputTokens: int32(cfg.params.MaxTokens),
		TopP:            genai.Ptr(float32(cfg.params.TopP)),
		TopK:            genai.Ptr(float32(cfg.params.TopK)),
	}

	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	if len(cfg.tools) > 0 {
		config.Tools = prvdr.convertTools(cfg.tools)

		if cfg.toolChoice != "" {
			config.ToolConfig = googleToolConfig(cfg.toolChoice)
		}
	}

	if cfg.format.structured() {
		config.ResponseMIMEType = "application/json"

		if cfg.format.Type == FormatJSONSchema && cfg.format.Schema != nil {
			config.ResponseSchema = toGoogleSchema(cfg.format.Schema)
		}
	}

	return prvdr.convertMessages(converted), config, warnings
}

func (prvdr *GoogleProvider) collect(resp *genai.GenerateContentResponse) (string, []ToolCall) {
	var (
		sb    strings.Builder
		calls []ToolCall
	)

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}

		if part.FunctionCall != nil {
			calls = append(calls, ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: encodeArguments(part.FunctionCall.Args),
			})

			continue
		}

		sb.WriteString(part.Text)
	}

	return sb.String(), calls
}

func (prvdr *GoogleProvider) convertMessages(converted []message.VendorMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(converted))

	for _, msg := range converted {
		parts := make([]*genai.Part, 0, len(msg.Parts))

		for _, part := range msg.Parts {
			switch part.Type {
			case message.PartTypeText:
				parts = append(parts, genai.NewPartFromText(part.Text))
			case message.PartTypeImage:
				parts = append(parts, genai.NewPartFromURI(part.ImageURL, part.MimeType))
			}
		}

		if len(parts) == 0 {
			continue
		}

		out = append(out, &genai.Content{Role: msg.Role, Parts: parts})
	}

	return out
}

func (prvdr *GoogleProvider) convertTools(tools []ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))

	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGoogleSchema(tool.Schema()),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

/*
toGoogleSchema converts a JSON schema document recursively.
*/
func toGoogleSchema(doc map[string]any) *genai.Schema {
	schema := &genai.Schema{Type: genai.TypeString}

	if name, ok := doc["type"].(string); ok {
		if mapped, ok := googleSchemaTypes[name]; ok {
			schema.Type = mapped
		} else {
			log.Warn("unknown schema type, using string", "type", name)
		}
	}

	schema.Description, _ = doc["description"].(string)

	if enum, ok := doc["enum"].([]any); ok {
		for _, value := range enum {
			if s, ok := value.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if items, ok := doc["items"].(map[string]any); ok {
		schema.Items = toGoogleSchema(items)
	}

	if props, ok := doc["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))

		for name, value := range props {
			if sub, ok := value.(map[string]any); ok {
				schema.Properties[name] = toGoogleSchema(sub)
			}
		}
	}

	schema.Required = ToolDefinition{Parameters: doc}.Required()
	return schema
}

func googleToolConfig(choice string) *genai.ToolConfig {
	calling := &genai.FunctionCallingConfig{}

	switch choice {
	case "auto":
		calling.Mode = genai.FunctionCallingConfigModeAuto
	case "none":
		calling.Mode = genai.FunctionCallingConfigModeNone
	case "required":
		calling.Mode = genai.FunctionCallingConfigModeAny
	default:
		calling.Mode = genai.FunctionCallingConfigModeAny
		calling.AllowedFunctionNames = []string{choice}
	}

	return &genai.ToolConfig{FunctionCallingConfig: calling}
}

func googleStatus(err error) int {
	var apiErr genai.APIError

	if stderrors.As(err, &apiErr) {
		return apiErr.Code
	}

	var apiErrPtr *genai.APIError

	if stderrors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}

	return 0
}
