package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/theapemachine/mem0-go/pkg/memory")

/*
Client talks to the hosted memory service. It is safe for concurrent use.
*/
type Client struct {
	cfg   Config
	conn  *fiberClient.Client
	cache SearchCache
}

/*
NewClient fails fast with a ConfigurationError when no API key is
configured, before any request is made.
*/
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewConfigurationError(
			"mem0_api_key", "an API key is required for the memory service",
		)
	}

	cfg = cfg.withDefaults()

	return &Client{
		cfg:   cfg,
		conn:  fiberClient.New().SetBaseURL(strings.TrimRight(cfg.Host, "/")).SetTimeout(cfg.Timeout),
		cache: cfg.Cache,
	}, nil
}

/*
Search retrieves memories relevant to query within scope.
*/
func (client *Client) Search(
	ctx context.Context, query string, scope Scope, opts SearchOptions,
) (*SearchResult, error) {
	ctx, span := tracer.Start(ctx, "memory.search")
	defer span.End()

	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	scope = scope.withDefaults(client.cfg)

	body := map[string]any{
		"query":   query,
		"top_k":   opts.TopK,
		"version": "v2",
	}

	if filters := scope.Filters(opts.Mode); filters != nil {
		body["filters"] = filters
	}

	if opts.EnableGraph {
		body["enable_graph"] = true
	}

	if opts.Threshold > 0 {
		body["threshold"] = opts.Threshold
	}

	if opts.Rerank {
		body["rerank"] = true
	}

	scope.apply(body)

	var key string

	if client.cache != nil {
		key = client.searchKey(ctx, query, scope, opts)

		if cached, ok := client.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("memory.cache_hit", true))
			return cached, nil
		}
	}

	data, err := client.do(ctx, span, "search", http.MethodPost, "/v2/memories/search/", body, nil)
	if err != nil {
		return nil, err
	}

	memories, relations, err := decodeList[Memory](data)
	if err != nil {
		return nil, client.badResponse(span, "search", err)
	}

	result := &SearchResult{Memories: memories, Relations: relations}
	span.SetAttributes(attribute.Int("memory.results", len(memories)))

	if client.cache != nil {
		client.cache.Set(ctx, key, result, client.cfg.CacheTTL)
	}

	return result, nil
}

/*
Add persists conversation turns under scope.
*/
func (client *Client) Add(
	ctx context.Context, msgs []message.Message, scope Scope, opts AddOptions,
) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "memory.add")
	defer span.End()

	turns := make([]map[string]string, 0, len(msgs))

	for _, msg := range msgs {
		if text := msg.String(); text != "" {
			turns = append(turns, map[string]string{
				"role":    string(msg.Role),
				"content": text,
			})
		}
	}

	scope = scope.withDefaults(client.cfg)

	body := map[string]any{
		"messages":      turns,
		"version":       "v2",
		"output_format": "v1.1",
	}

	if len(opts.Metadata) > 0 {
		body["metadata"] = opts.Metadata
	}

	if opts.Infer != nil {
		body["infer"] = *opts.Infer
	}

	if opts.Async {
		body["async_mode"] = true
	}

	scope.apply(body)

	data, err := client.do(ctx, span, "add", http.MethodPost, "/v1/memories/", body, nil)
	if err != nil {
		return nil, err
	}

	client.invalidate(ctx, scope)

	events, _, err := decodeList[Event](data)
	if err != nil {
		return nil, client.badResponse(span, "add", err)
	}

	return events, nil
}

/*
Update replaces the text, and optionally the metadata, of one memory.
*/
func (client *Client) Update(
	ctx context.Context, id, text string, metadata map[string]any,
) (*Memory, error) {
	ctx, span := tracer.Start(ctx, "memory.update")
	defer span.End()

	body := map[string]any{"text": text}

	if len(metadata) > 0 {
		body["metadata"] = metadata
	}

	data, err := client.do(ctx, span, "update", http.MethodPut, memoryPath(id), body, nil)
	if err != nil {
		return nil, err
	}

	client.invalidate(ctx, Scope{})
	return client.decodeMemory(span, "update", id, data)
}

/*
Get fetches one memory by id.
*/
func (client *Client) Get(ctx context.Context, id string) (*Memory, error) {
	ctx, span := tracer.Start(ctx, "memory.get")
	defer span.End()

	data, err := client.do(ctx, span, "get", http.MethodGet, memoryPath(id), nil, nil)
	if err != nil {
		return nil, err
	}

	return client.decodeMemory(span, "get", id, data)
}

/*
GetAll lists the memories within scope. A positive limit sets the page size.
*/
func (client *Client) GetAll(ctx context.Context, scope Scope, limit int) ([]Memory, error) {
	ctx, span := tracer.Start(ctx, "memory.get_all")
	defer span.End()

	params := scope.withDefaults(client.cfg).Params()

	if limit > 0 {
		params["page_size"] = fmt.Sprint(limit)
	}

	data, err := client.do(ctx, span, "get_all", http.MethodGet, "/v1/memories/", nil, params)
	if err != nil {
		return nil, err
	}

	memories, _, err := decodeList[Memory](data)
	if err != nil {
		return nil, client.badResponse(span, "get_all", err)
	}

	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}

	return memories, nil
}

func (client *Client) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "memory.delete")
	defer span.End()

	if _, err := client.do(ctx, span, "delete", http.MethodDelete, memoryPath(id), nil, nil); err != nil {
		return err
	}

	client.invalidate(ctx, Scope{})
	return nil
}

/*
DeleteAll removes every memory within scope. An empty scope is refused so a
missing identifier never wipes a whole project.
*/
func (client *Client) DeleteAll(ctx context.Context, scope Scope) error {
	ctx, span := tracer.Start(ctx, "memory.delete_all")
	defer span.End()

	if scope.IsEmpty() {
		return errors.NewConfigurationError("scope", "delete all requires at least one of user_id, agent_id, app_id or run_id")
	}

	scope = scope.withDefaults(client.cfg)

	if _, err := client.do(ctx, span, "delete_all", http.MethodDelete, "/v1/memories/", nil, scope.Params()); err != nil {
		return err
	}

	client.invalidate(ctx, scope)
	return nil
}

func (client *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "memory.history")
	defer span.End()

	data, err := client.do(ctx, span, "history", http.MethodGet, memoryPath(id)+"history/", nil, nil)
	if err != nil {
		return nil, err
	}

	entries, _, err := decodeList[HistoryEntry](data)
	if err != nil {
		return nil, client.badResponse(span, "history", err)
	}

	return entries, nil
}

/*
Validate checks the API key against the service.
*/
func (client *Client) Validate(ctx context.Context) (*Ping, error) {
	ctx, span := tracer.Start(ctx, "memory.validate")
	defer span.End()

	data, err := client.do(ctx, span, "validate", http.MethodGet, "/v1/ping/", nil, nil)
	if err != nil {
		return nil, err
	}

	var ping Ping

	if err = json.Unmarshal(data, &ping); err != nil {
		return nil, client.badResponse(span, "validate", err)
	}

	return &ping, nil
}

func (client *Client) do(
	ctx context.Context,
	span trace.Span,
	op, method, path string,
	body any,
	params map[string]string,
) ([]byte, error) {
	cfg := fiberClient.Config{
		Ctx: ctx,
		Header: map[string]string{
			"Authorization": "Token " + client.cfg.APIKey,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		Param: params,
	}

	if body != nil {
		cfg.Body = body
	}

	var (
		resp *fiberClient.Response
		err  error
	)

	switch method {
	case http.MethodPost:
		resp, err = client.conn.Post(path, cfg)
	case http.MethodPut:
		resp, err = client.conn.Put(path, cfg)
	case http.MethodDelete:
		resp, err = client.conn.Delete(path, cfg)
	default:
		resp, err = client.conn.Get(path, cfg)
	}

	if err != nil {
		failure := &errors.MemoryServiceError{Op: op, Kind: errors.KindUnavailable, Err: err}
		fail(span, failure)
		log.Warn("memory request failed", "op", op, "error", err)
		return nil, failure
	}

	defer resp.Close()

	status := resp.StatusCode()
	data := append([]byte(nil), resp.Body()...)

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		failure := &errors.MemoryServiceError{
			Op:     op,
			Status: status,
			Kind:   errors.MemoryKindForStatus(status),
			Detail: errors.Scrub(truncate(strings.TrimSpace(string(data)), 200)),
		}

		fail(span, failure)
		log.Warn("memory service returned an error", "op", op, "status", status, "kind", failure.Kind)
		return nil, failure
	}

	span.SetAttributes(attribute.Int("http.status_code", status))
	return data, nil
}

func (client *Client) decodeMemory(span trace.Span, op, id string, data []byte) (*Memory, error) {
	var mem Memory

	if len(strings.TrimSpace(string(data))) == 0 {
		return &Memory{ID: id}, nil
	}

	if err := json.Unmarshal(data, &mem); err != nil {
		return nil, client.badResponse(span, op, err)
	}

	if mem.ID == "" {
		mem.ID = id
	}

	return &mem, nil
}

func (client *Client) badResponse(span trace.Span, op string, err error) error {
	failure := &errors.MemoryServiceError{Op: op, Kind: errors.KindBadResponse, Err: err}
	fail(span, failure)
	return failure
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func memoryPath(id string) string {
	return "/v1/memories/" + url.PathEscape(id) + "/"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n] + "..."
}
