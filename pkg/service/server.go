package service

import (
	"bufio"
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/mem0-go/pkg/ai"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/metrics"
	"github.com/theapemachine/mem0-go/pkg/provider"
	"github.com/theapemachine/mem0-go/pkg/service/sse"
)

/*
AdapterFactory builds the adapter for a provider name and model. The command
layer closes it over the environment so the service never reads it.
*/
type AdapterFactory func(name, model string) (provider.Adapter, error)

type Config struct {
	Addr      string
	Provider  string
	Model     string
	Heartbeat time.Duration
	Options   []ai.Option
}

/*
Server exposes the orchestrator over HTTP. One orchestrator is built per
provider and model and shared between requests, so Server is safe for
concurrent use and Shutdown can wait for their pending write-backs.
*/
type Server struct {
	app           *fiber.App
	cfg           Config
	factory       AdapterFactory
	gateway       ai.MemoryGateway
	metrics       *metrics.GenerationMetrics
	mu            sync.Mutex
	orchestrators map[string]*ai.Orchestrator
}

/*
NewServer registers the routes. A nil gateway serves generation without
memory and answers the memory routes with 503.
*/
func NewServer(cfg Config, factory AdapterFactory, gateway ai.MemoryGateway) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3210"
	}

	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:           "mem0-go",
			ServerHeader:      "mem0-go",
			StreamRequestBody: true,
		}),
		cfg:           cfg,
		factory:       factory,
		gateway:       gateway,
		metrics:       metrics.NewGenerationMetrics(),
		orchestrators: make(map[string]*ai.Orchestrator),
	}

	srv.app.Use(logger.New(logger.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))
	srv.app.Get("/health", healthcheck.NewHealthChecker())
	srv.app.Get("/metrics", srv.handleMetrics)
	srv.app.Post("/v1/generate", srv.handleGenerate)
	srv.app.Post("/v1/stream", srv.handleStream)
	srv.app.Post("/v1/memories/search", srv.handleSearch)

	return srv
}

func (srv *Server) Start() error {
	log.Info("serving", "addr", srv.cfg.Addr)
	return srv.app.Listen(srv.cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true})
}

/*
Shutdown stops accepting requests, then waits for asynchronous write-backs
still in flight.
*/
func (srv *Server) Shutdown() error {
	err := srv.app.Shutdown()

	srv.mu.Lock()
	defer srv.mu.Unlock()

	for _, orchestrator := range srv.orchestrators {
		orchestrator.Wait()
	}

	return err
}

func (srv *Server) handleMetrics(c fiber.Ctx) error {
	return c.JSON(srv.metrics.GetMetrics())
}

func (srv *Server) handleGenerate(c fiber.Ctx) error {
	req, orchestrator, err := srv.prepare(c)
	if err != nil {
		return srv.fail(c, err)
	}

	result, err := orchestrator.Generate(c.Context(), req)
	if err != nil {
		return srv.fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(newGenerateResponse(result))
}

/*
handleStream answers with SSE frames: deltas, then one final frame carrying
the result or the error. A client that disconnects cancels the vendor stream;
whatever was received is still persisted by the orchestrator.
*/
func (srv *Server) handleStream(c fiber.Ctx) error {
	req, orchestrator, err := srv.prepare(c)
	if err != nil {
		return srv.fail(c, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	chunks, err := orchestrator.Stream(ctx, req)
	if err != nil {
		cancel()
		return srv.fail(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if err := sse.Relay(sse.NewWriter(w), chunks, srv.cfg.Heartbeat, newStreamFrame); err != nil {
			log.Warn("stream client went away", "error", err)
			cancel()

			for range chunks {
			}
		}
	})
}

func (srv *Server) handleSearch(c fiber.Ctx) error {
	if srv.gateway == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{
			Error: "memory is not configured",
		})
	}

	var req searchRequest

	if err := c.Bind().Body(&req); err != nil {
		return srv.fail(c, errors.NewConfigurationError("body", err.Error()))
	}

	if req.Query == "" {
		return srv.fail(c, errors.NewConfigurationError("query", "must not be empty"))
	}

	result, err := srv.gateway.Search(c.Context(), req.Query, req.scope(), req.options())
	if err != nil {
		return srv.fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

/*
prepare decodes a generation request and picks the orchestrator for the
requested provider.
*/
func (srv *Server) prepare(c fiber.Ctx) (ai.Request, *ai.Orchestrator, error) {
	var body generateRequest

	if err := c.Bind().Body(&body); err != nil {
		return ai.Request{}, nil, errors.NewConfigurationError("body", err.Error())
	}

	if len(body.Messages) == 0 {
		return ai.Request{}, nil, errors.NewConfigurationError("messages", "at least one message is required")
	}

	name, model := body.Provider, body.Model

	if name == "" {
		name = srv.cfg.Provider

		if model == "" {
			model = srv.cfg.Model
		}
	}

	orchestrator, err := srv.orchestrator(name, model)
	if err != nil {
		return ai.Request{}, nil, err
	}

	return body.request(), orchestrator, nil
}

func (srv *Server) orchestrator(name, model string) (*ai.Orchestrator, error) {
	key := name + "/" + model

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if orchestrator, ok := srv.orchestrators[key]; ok {
		return orchestrator, nil
	}

	adapter, err := srv.factory(name, model)
	if err != nil {
		return nil, err
	}

	options := append([]ai.Option{}, srv.cfg.Options...)
	options = append(options, ai.WithMetrics(srv.metrics))

	orchestrator := ai.NewOrchestrator(adapter, srv.gateway, options...)
	srv.orchestrators[key] = orchestrator

	return orchestrator, nil
}

/*
fail maps the error taxonomy onto HTTP statuses.
*/
func (srv *Server) fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var missing *errors.MissingDependencyError

	switch {
	case stderrors.As(err, &missing):
		status = fiber.StatusServiceUnavailable
	case stderrors.Is(err, errors.ErrConfiguration):
		status = fiber.StatusBadRequest
	case errors.IsUnauthorized(err):
		status = fiber.StatusUnauthorized
	case stderrors.Is(err, errors.ErrVendorGeneration),
		stderrors.Is(err, errors.ErrMemoryUnavailable):
		status = fiber.StatusBadGateway
	}

	log.Error("request failed", "path", c.Path(), "status", status, "error", err)

	return c.Status(status).JSON(errorResponse{Error: errors.Scrub(err.Error())})
}
