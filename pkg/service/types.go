package service

import (
	"github.com/theapemachine/mem0-go/pkg/ai"
	"github.com/theapemachine/mem0-go/pkg/memory"
	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/theapemachine/mem0-go/pkg/provider"
)

type scopeFields struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	AppID   string `json:"app_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

func (fields scopeFields) scope() memory.Scope {
	return memory.Scope{
		UserID:  fields.UserID,
		AgentID: fields.AgentID,
		AppID:   fields.AppID,
		RunID:   fields.RunID,
	}
}

/*
generateRequest is the body of /v1/generate and /v1/stream. Provider and
model fall back to the server defaults.
*/
type generateRequest struct {
	scopeFields
	Provider       string                    `json:"provider,omitempty"`
	Model          string                    `json:"model,omitempty"`
	Messages       []message.Message         `json:"messages"`
	Tools          []provider.ToolDefinition `json:"tools,omitempty"`
	ToolChoice     string                    `json:"tool_choice,omitempty"`
	ResponseFormat *provider.ResponseFormat  `json:"response_format,omitempty"`
	Temperature    *float64                  `json:"temperature,omitempty"`
	TopP           *float64                  `json:"top_p,omitempty"`
	MaxTokens      int                       `json:"max_tokens,omitempty"`
	Metadata       map[string]any            `json:"metadata,omitempty"`
}

func (body generateRequest) request() ai.Request {
	var opts []provider.CallOption

	if len(body.Tools) > 0 {
		opts = append(opts, provider.WithTools(body.Tools...))
	}

	if body.ToolChoice != "" {
		opts = append(opts, provider.WithToolChoice(body.ToolChoice))
	}

	if body.ResponseFormat != nil {
		opts = append(opts, provider.WithResponseFormat(*body.ResponseFormat))
	}

	if body.Temperature != nil {
		opts = append(opts, provider.WithTemperature(*body.Temperature))
	}

	if body.TopP != nil {
		opts = append(opts, provider.WithTopP(*body.TopP))
	}

	if body.MaxTokens > 0 {
		opts = append(opts, provider.WithMaxTokens(body.MaxTokens))
	}

	return ai.Request{
		Messages: body.Messages,
		Scope:    body.scope(),
		Options:  opts,
		Metadata: body.Metadata,
	}
}

type generateResponse struct {
	Text      string              `json:"text"`
	Role      string              `json:"role"`
	ToolCalls []provider.ToolCall `json:"tool_calls,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
	Provider  provider.Kind       `json:"provider"`
	Model     string              `json:"model"`
	Memories  []memory.Memory     `json:"memories"`
	Degraded  bool                `json:"degraded"`
	Persisted bool                `json:"persisted"`
	Pending   bool                `json:"pending,omitempty"`
}

func newGenerateResponse(result *ai.Result) generateResponse {
	response := generateResponse{
		Memories:  result.Retrieval.Memories,
		Degraded:  result.Retrieval.Degraded,
		Persisted: result.Persistence.Attempted && !result.Persistence.Pending && result.Persistence.Err == nil,
		Pending:   result.Persistence.Pending,
	}

	if response.Memories == nil {
		response.Memories = []memory.Memory{}
	}

	if gen := result.Generation; gen != nil {
		response.Text = gen.Text
		response.Role = gen.Role
		response.ToolCalls = gen.ToolCalls
		response.Warnings = gen.Warnings
		response.Provider = gen.Provider
		response.Model = gen.Model
	}

	return response
}

/*
streamFrame is one SSE data frame. The final frame has Done set and either
Result or Error.
*/
type streamFrame struct {
	ID     string            `json:"id"`
	Delta  string            `json:"delta,omitempty"`
	Done   bool              `json:"done,omitempty"`
	Result *generateResponse `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func newStreamFrame(chunk ai.Chunk) any {
	frame := streamFrame{ID: chunk.ID, Delta: chunk.Delta, Done: chunk.Done}

	if chunk.Err != nil {
		frame.Error = chunk.Err.Error()
	}

	if chunk.Result != nil {
		response := newGenerateResponse(chunk.Result)
		frame.Result = &response
	}

	return frame
}

type searchRequest struct {
	scopeFields
	Query     string  `json:"query"`
	TopK      int     `json:"top_k,omitempty"`
	Graph     bool    `json:"enable_graph,omitempty"`
	MatchAll  bool    `json:"match_all,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (req searchRequest) options() memory.SearchOptions {
	opts := memory.SearchOptions{
		TopK:        req.TopK,
		EnableGraph: req.Graph,
		Threshold:   req.Threshold,
	}

	if req.MatchAll {
		opts.Mode = memory.MatchAll
	}

	return opts
}

type errorResponse struct {
	Error string `json:"error"`
}
