package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	ollamaInstall      = "install Ollama from https://ollama.com/download and start it with `ollama serve`"
	ollamaPullDeadline = 30 * time.Minute
)

/*
OllamaProvider is a provider for a local Ollama runtime. Constructing it
never touches the network; the runtime and the model are probed on first use
and the outcome is cached.
*/
type OllamaProvider struct {
	adapter
	client      *api.Client
	timeout     time.Duration
	pullMissing bool
	probe       *capabilityProbe
}

func NewOllamaProvider(model string, settings Settings) (*OllamaProvider, error) {
	host := settings.BaseURL

	if host == "" {
		host = defaultOllamaHost
	}

	base, err := url.Parse(host)
	if err != nil || base.Host == "" {
		return nil, &errors.ConfigurationError{Field: "ollama.base_url", Reason: "invalid URL " + host, Err: err}
	}

	httpClient := settings.HTTPClient

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	prvdr := &OllamaProvider{
		adapter: adapter{
			kind:   KindOllama,
			model:  model,
			params: settings.params(),
			caps: Capabilities{
				Tools:          true,
				Streaming:      true,
				ResponseFormat: true,
			},
		},
		client:      api.NewClient(base, httpClient),
		timeout:     settings.timeout(),
		pullMissing: settings.PullMissing,
	}

	prvdr.probe = newCapabilityProbe(prvdr.timeout, prvdr.ensureModel)
	return prvdr, nil
}

func (prvdr *OllamaProvider) GenerateResponse(
	ctx context.Context, msgs []message.Message, opts ...CallOption,
) (*GenerationResult, error) {
	return prvdr.chat(ctx, msgs, nil, opts)
}

func (prvdr *OllamaProvider) GenerateChat(
	ctx context.Context, msgs []message.Message,
) (*ChatResult, error) {
	return chatFrom(prvdr.GenerateResponse(ctx, msgs))
}

func (prvdr *OllamaProvider) Stream(
	ctx context.Context, msgs []message.Message, onDelta func(string), opts ...CallOption,
) (*GenerationResult, error) {
	return prvdr.chat(ctx, msgs, onDelta, opts)
}

func (prvdr *OllamaProvider) chat(
	ctx context.Context,
	msgs []message.Message,
	onDelta func(string),
	opts []CallOption,
) (*GenerationResult, error) {
	if err := prvdr.probe.ensure(ctx); err != nil {
		return nil, err
	}

	cfg, msgs, warnings := prvdr.prepare(msgs, opts)
	stream := onDelta != nil

	req := &api.ChatRequest{
		Model:    prvdr.model,
		Messages: prvdr.convertMessages(msgs),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": cfg.params.Temperature,
			"top_p":       cfg.params.TopP,
			"top_k":       cfg.params.TopK,
			"num_predict": cfg.params.MaxTokens,
		},
	}

	if len(cfg.tools) > 0 && cfg.toolChoice != "none" {
		tools, err := prvdr.convertTools(cfg.tools)
		if err != nil {
			return nil, prvdr.fail(0, err)
		}

		req.Tools = tools
	}

	if cfg.format.structured() {
		req.Format = prvdr.applySchema(cfg.format)
	}

	ctx, cancel := context.WithTimeout(ctx, prvdr.timeout)
	defer cancel()

	var (
		sb    strings.Builder
		calls []ToolCall
	)

	err := prvdr.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			sb.WriteString(resp.Message.Content)

			if onDelta != nil {
				onDelta(resp.Message.Content)
			}
		}

		for _, call := range resp.Message.ToolCalls {
			calls = append(calls, ToolCall{
				Name:      call.Function.Name,
				Arguments: encodeArguments(map[string]any(call.Function.Arguments)),
			})
		}

		return nil
	})

	if err != nil {
		return nil, prvdr.fail(ollamaStatus(err), err)
	}

	return prvdr.result(sb.String(), calls, warnings), nil
}

/*
ensureModel checks that the runtime answers and that the model is present,
pulling it when allowed. Pull progress is logged since it can take minutes.
*/
func (prvdr *OllamaProvider) ensureModel(ctx context.Context) error {
	if err := prvdr.client.Heartbeat(ctx); err != nil {
		log.Error("ollama is not reachable", "error", err)
		return &errors.MissingDependencyError{Dependency: "ollama", Install: ollamaInstall, Err: err}
	}

	list, err := prvdr.client.List(ctx)
	if err != nil {
		return &errors.MissingDependencyError{Dependency: "ollama", Install: ollamaInstall, Err: err}
	}

	for _, model := range list.Models {
		if sameOllamaModel(model.Name, prvdr.model) || sameOllamaModel(model.Model, prvdr.model) {
			return nil
		}
	}

	if !prvdr.pullMissing {
		return &errors.MissingDependencyError{
			Dependency: "ollama model " + prvdr.model,
			Install:    "run `ollama pull " + prvdr.model + "`",
		}
	}

	pullCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ollamaPullDeadline)
	defer cancel()

	log.Info("pulling ollama model", "model", prvdr.model)

	err = prvdr.client.Pull(pullCtx, &api.PullRequest{Model: prvdr.model}, func(progress api.ProgressResponse) error {
		if progress.Total > 0 {
			log.Info("pulling ollama model",
				"model", prvdr.model,
				"status", progress.Status,
				"percent", progress.Completed*100/progress.Total,
			)
		} else {
			log.Info("pulling ollama model", "model", prvdr.model, "status", progress.Status)
		}

		return nil
	})

	if err != nil {
		return &errors.MissingDependencyError{
			Dependency: "ollama model " + prvdr.model,
			Install:    "run `ollama pull " + prvdr.model + "`",
			Err:        err,
		}
	}

	return nil
}

func sameOllamaModel(have, want string) bool {
	if have == want {
		return true
	}

	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}

	return false
}

func (prvdr *OllamaProvider) convertMessages(msgs []message.Message) []api.Message {
	_, converted := message.ToVendorFormat(msgs, message.VendorRules{PlainStringOnly: true})
	out := make([]api.Message, 0, len(converted))

	for _, msg := range converted {
		out = append(out, api.Message{Role: msg.Role, Content: msg.Text})
	}

	return out
}

/*
convertTools goes through JSON so the tool schema keeps every keyword the
caller supplied.
*/
func (prvdr *OllamaProvider) convertTools(tools []ToolDefinition) (api.Tools, error) {
	raw := make([]map[string]any, 0, len(tools))

	for _, tool := range tools {
		raw = append(raw, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Schema(),
			},
		})
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var out api.Tools

	if err = json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (prvdr *OllamaProvider) applySchema(format *ResponseFormat) json.RawMessage {
	if format.Type == FormatJSONSchema && format.Schema != nil {
		return json.RawMessage(compact(format.Schema))
	}

	return json.RawMessage(`"json"`)
}

func ollamaStatus(err error) int {
	var statusErr api.StatusError

	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}

	return 0
}
