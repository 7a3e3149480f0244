package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

const defaultBedrockRegion = "us-west-2"

/*
invokeOnly lists model id prefixes that predate the Converse API and must be
called through InvokeModel with a rendered prompt.
*/
var invokeOnly = []string{
	"anthropic.claude-v2",
	"anthropic.claude-instant",
	"ai21.j2",
	"cohere.command-text",
	"cohere.command-light-text",
	"amazon.titan-text",
	"meta.llama2",
}

/*
inferenceGeographies are the prefixes of cross-region inference profile ids.
*/
var inferenceGeographies = []string{"us-gov", "us", "eu", "apac", "ca", "jp", "au", "global"}

/*
BedrockProvider is a provider for AWS Bedrock. Converse-capable models get
the full feature set, invoke-only models plain text completion.
*/
type BedrockProvider struct {
	adapter
	client  *bedrockruntime.Client
	invoke  bool
	timeout time.Duration
}

func NewBedrockProvider(ctx context.Context, model string, settings Settings) (*BedrockProvider, error) {
	loaders := []func(*config.LoadOptions) error{}

	if settings.Region != "" {
		loaders = append(loaders, config.WithRegion(settings.Region))
	}

	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				settings.AccessKeyID, settings.SecretAccessKey, settings.SessionToken,
			),
		))
	}

	if settings.HTTPClient != nil {
		loaders = append(loaders, config.WithHTTPClient(settings.HTTPClient))
	}

	if settings.MaxRetries > 0 {
		loaders = append(loaders, config.WithRetryMaxAttempts(settings.MaxRetries))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, &errors.ConfigurationError{
			Field:  "bedrock",
			Reason: "could not load AWS configuration",
			Err:    err,
		}
	}

	if cfg.Region == "" {
		cfg.Region = defaultBedrockRegion
	}

	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if settings.BaseURL != "" {
			o.BaseEndpoint = aws.String(settings.BaseURL)
		}
	})

	invoke := isInvokeOnly(model)

	return &BedrockProvider{
		adapter: adapter{
			kind:   KindBedrock,
			model:  model,
			params: settings.params(),
			caps: Capabilities{
				Tools:         !invoke,
				SystemChannel: !invoke,
			},
		},
		client:  client,
		invoke:  invoke,
		timeout: settings.timeout(),
	}, nil
}

/*
baseModelID strips a cross-region inference profile geography, so that
"us.meta.llama2-13b-chat-v1" and "meta.llama2-13b-chat-v1" name the same
model family.
*/
func baseModelID(model string) string {
	geo, rest, found := strings.Cut(model, ".")
	if !found || !strings.Contains(rest, ".") {
		return model
	}

	for _, known := range inferenceGeographies {
		if geo == known {
			return rest
		}
	}

	return model
}

func isInvokeOnly(model string) bool {
	id := baseModelID(model)

	for _, prefix := range invokeOnly {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}

	return false
}

func (prvdr *BedrockProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	cfg, msgs, warnings := prvdr.prepare(msgs, opts)

	if prvdr.invoke {
		return prvdr.invokeModel(ctx, msgs, cfg, warnings)
	}

	system, converted := message.ToVendorFormat(msgs, message.VendorRules{
		SystemChannel:   true,
		PlainStringOnly: true,
	})

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(prvdr.model),
		Messages: make([]types.Message, 0, len(converted)),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(cfg.params.MaxTokens)),
			Temperature: aws.Float32(float32(cfg.params.Temperature)),
			TopP:        aws.Float32(float32(cfg.params.TopP)),
		},
	}

	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}

	for _, msg := range converted {
		role := types.ConversationRoleUser

		if msg.Role == string(message.RoleAssistant) {
			role = types.ConversationRoleAssistant
		}

		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Text}},
		})
	}

	if len(cfg.tools) > 0 && cfg.toolChoice != "none" {
		input.ToolConfig = prvdr.toolConfig(cfg)
	}

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	output, err := prvdr.client.Converse(ctx, input)
	if err != nil {
		return nil, prvdr.fail(bedrockStatus(err), err)
	}

	reply, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, prvdr.fail(0, fmt.Errorf("converse returned no message"))
	}

	var (
		sb    strings.Builder
		calls []ToolCall
	)

	for _, block := range reply.Value.Content {
		switch value := block.(type) {
		case *types.ContentBlockMemberText:
			sb.WriteString(value.Value)
		case *types.ContentBlockMemberToolUse:
			calls = append(calls, prvdr.toolCall(value.Value))
		}
	}

	return prvdr.result(sb.String(), calls, warnings), nil
}

func (prvdr *BedrockProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *BedrockProvider) toolConfig(cfg *callConfig) *types.ToolConfiguration {
	toolConfig := &types.ToolConfiguration{}

	for _, tool := range cfg.tools {
		toolConfig.Tools = append(toolConfig.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(tool.Schema()),
				},
			},
		})
	}

	switch cfg.toolChoice {
	case "", "auto":
		toolConfig.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
	case "required", "any":
		toolConfig.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
	default:
		toolConfig.ToolChoice = &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(cfg.toolChoice)},
		}
	}

	return toolConfig
}

func (prvdr *BedrockProvider) toolCall(block types.ToolUseBlock) ToolCall {
	call := ToolCall{
		ID:        aws.ToString(block.ToolUseId),
		Name:      aws.ToString(block.Name),
		Arguments: "{}",
	}

	if block.Input == nil {
		return call
	}

	if raw, err := block.Input.MarshalSmithyDocument(); err == nil {
		call.Arguments = encodeArguments(raw)
	}

	return call
}

func (prvdr *BedrockProvider) invokeModel(
	ctx context.Context, msgs []message.Message, cfg *callConfig, warnings []string,
) (*GenerationResult, error) {
	family := baseModelID(prvdr.model)

	body, err := json.Marshal(invokeBody(family, message.RolePrefixPrompt("", msgs), cfg.params))
	if err != nil {
		return nil, prvdr.fail(0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	output, err := prvdr.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(prvdr.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})

	if err != nil {
		return nil, prvdr.fail(bedrockStatus(err), err)
	}

	text, err := invokeText(family, output.Body)
	if err != nil {
		return nil, prvdr.fail(0, err)
	}

	return prvdr.result(text, nil, warnings), nil
}

/*
invokeBody shapes the request body for the model family named by the first
segment of a model id without its inference geography.
*/
func invokeBody(model, prompt string, params Params) map[string]any {
	family, _, _ := strings.Cut(model, ".")

	switch family {
	case "meta":
		return map[string]any{
			"prompt":      prompt,
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"max_gen_len": params.MaxTokens,
		}
	case "ai21":
		return map[string]any{
			"prompt":      prompt,
			"temperature": params.Temperature,
			"topP":        params.TopP,
			"maxTokens":   params.MaxTokens,
		}
	case "mistral":
		return map[string]any{
			"prompt":      prompt,
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"max_tokens":  params.MaxTokens,
		}
	case "cohere":
		return map[string]any{
			"prompt":      prompt,
			"temperature": params.Temperature,
			"p":           params.TopP,
			"max_tokens":  params.MaxTokens,
		}
	case "amazon":
		return map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": params.MaxTokens,
				"topP":          params.TopP,
				"temperature":   params.Temperature,
			},
		}
	}

	return map[string]any{
		"prompt":               prompt,
		"temperature":          params.Temperature,
		"top_p":                params.TopP,
		"max_tokens_to_sample": params.MaxTokens,
	}
}

/*
invokeText pulls the completion out of a family-specific response body.
*/
func invokeText(model string, body []byte) (string, error) {
	var response struct {
		Completion  string `json:"completion"`
		Generation  string `json:"generation"`
		Completions []struct {
			Data struct {
				Text string `json:"text"`
			} `json:"data"`
		} `json:"completions"`
		Generations []struct {
			Text string `json:"text"`
		} `json:"generations"`
		Results []struct {
			OutputText string `json:"outputText"`
		} `json:"results"`
		Outputs []struct {
			Text string `json:"text"`
		} `json:"outputs"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode %s response: %w", model, err)
	}

	family, _, _ := strings.Cut(model, ".")

	switch {
	case family == "meta":
		return response.Generation, nil
	case family == "ai21" && len(response.Completions) > 0:
		return response.Completions[0].Data.Text, nil
	case family == "cohere" && len(response.Generations) > 0:
		return response.Generations[0].Text, nil
	case family == "amazon" && len(response.Results) > 0:
		return response.Results[0].OutputText, nil
	case family == "mistral" && len(response.Outputs) > 0:
		return response.Outputs[0].Text, nil
	}

	return response.Completion, nil
}

func bedrockStatus(err error) int {
	var response interface{ HTTPStatusCode() int }

	if stderrors.As(err, &response) {
		return response.HTTPStatusCode()
	}

	return 0
}
