package provider

import (
	"net/http"
	"time"

	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/tmc/langchaingo/llms"
)

/*
Params are the sampling parameters sent with every request. The defaults are
fixed so that behaviour does not depend on vendor-side defaults.
*/
type Params struct {
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	TopP        float64 `json:"top_p" mapstructure:"top_p"`
	TopK        int     `json:"top_k" mapstructure:"top_k"`
}

func DefaultParams() Params {
	return Params{
		Temperature: 0.1,
		MaxTokens:   2000,
		TopP:        0.1,
		TopK:        1,
	}
}

/*
Settings configure one adapter instance. Everything is explicit: adapters
never read the environment.
*/
type Settings struct {
	APIKey     string
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client

	// Params replaces the defaults when set. Non-positive MaxTokens and TopK
	// fall back to the defaults.
	Params *Params

	// SiteURL and AppName are sent as attribution headers to OpenRouter.
	SiteURL string
	AppName string

	// Bedrock credentials. Empty keys defer to the AWS default chain.
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// PullMissing lets the Ollama probe pull a model that is not present.
	PullMissing bool

	// LangChain is the wrapped model for the langchain kind.
	LangChain llms.Model
}

func (settings Settings) params() Params {
	params := DefaultParams()

	if settings.Params == nil {
		return params
	}

	params.Temperature = settings.Params.Temperature
	params.TopP = settings.Params.TopP

	if settings.Params.MaxTokens > 0 {
		params.MaxTokens = settings.Params.MaxTokens
	}

	if settings.Params.TopK > 0 {
		params.TopK = settings.Params.TopK
	}

	return params
}

func (settings Settings) timeout() time.Duration {
	if settings.Timeout > 0 {
		return settings.Timeout
	}

	return 60 * time.Second
}

/*
validate checks settings before an adapter is constructed.
*/
func validate(kind Kind, model string, settings Settings) error {
	params := settings.params()

	val := valgo.Is(valgo.String(model, "model").Not().Blank()).
		Is(valgo.Float64(params.Temperature, "temperature").Between(0, 2)).
		Is(valgo.Float64(params.TopP, "top_p").Between(0, 1)).
		Is(valgo.Int(params.MaxTokens, "max_tokens").GreaterThan(0))

	if kind.requiresAPIKey() {
		val.Is(valgo.String(settings.APIKey, "api_key").Not().Blank())
	}

	if kind == KindLangChain && settings.LangChain == nil {
		return errors.NewConfigurationError("langchain", "a wrapped llms.Model is required")
	}

	if !val.Valid() {
		return &errors.ConfigurationError{
			Field:  string(kind),
			Reason: "invalid settings",
			Err:    val.Error(),
		}
	}

	return nil
}

type ResponseFormatType string

const (
	FormatText       ResponseFormatType = "text"
	FormatJSONObject ResponseFormatType = "json_object"
	FormatJSONSchema ResponseFormatType = "json_schema"
)

/*
ResponseFormat asks the model for structured output. Schema is only used
with FormatJSONSchema.
*/
type ResponseFormat struct {
	Type   ResponseFormatType `json:"type"`
	Name   string             `json:"name,omitempty"`
	Schema map[string]any     `json:"schema,omitempty"`
}

func (format *ResponseFormat) structured() bool {
	return format != nil && format.Type != "" && format.Type != FormatText
}

/*
instruction is the fallback for vendors that cannot enforce a format.
*/
func (format *ResponseFormat) instruction() string {
	if format.Type == FormatJSONSchema && format.Schema != nil {
		return "Respond only with a JSON object that matches this JSON schema: " + compact(format.Schema)
	}

	return "Respond only with a valid JSON object."
}

type callConfig struct {
	params     Params
	tools      []ToolDefinition
	toolChoice string
	format     *ResponseFormat
}

/*
CallOption overrides request settings for a single call.
*/
type CallOption func(*callConfig)

func newCallConfig(base Params, opts []CallOption) *callConfig {
	cfg := &callConfig{params: base}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

func WithTools(tools ...ToolDefinition) CallOption {
	return func(cfg *callConfig) {
		cfg.tools = append(cfg.tools, tools...)
	}
}

/*
WithToolChoice is "auto", "none", "required" or the name of one tool.
*/
func WithToolChoice(choice string) CallOption {
	return func(cfg *callConfig) {
		cfg.toolChoice = choice
	}
}

func WithResponseFormat(format ResponseFormat) CallOption {
	return func(cfg *callConfig) {
		cfg.format = &format
	}
}

func WithTemperature(temperature float64) CallOption {
	return func(cfg *callConfig) {
		cfg.params.Temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) CallOption {
	return func(cfg *callConfig) {
		if maxTokens > 0 {
			cfg.params.MaxTokens = maxTokens
		}
	}
}

func WithTopP(topP float64) CallOption {
	return func(cfg *callConfig) {
		cfg.params.TopP = topP
	}
}

func WithTopK(topK int) CallOption {
	return func(cfg *callConfig) {
		if topK > 0 {
			cfg.params.TopK = topK
		}
	}
}
