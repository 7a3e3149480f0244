package ai

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/memory"
	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/theapemachine/mem0-go/pkg/metrics"
	"github.com/theapemachine/mem0-go/pkg/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/theapemachine/mem0-go/pkg/ai")

/*
MemoryGateway is the part of the memory client the orchestrator needs.
*/
type MemoryGateway interface {
	Search(ctx context.Context, query string, scope memory.Scope, opts memory.SearchOptions) (*memory.SearchResult, error)
	Add(ctx context.Context, msgs []message.Message, scope memory.Scope, opts memory.AddOptions) ([]memory.Event, error)
}

/*
Request is one generation call. Scope decides whose memories are read and
where the new turn is written.
*/
type Request struct {
	Messages []message.Message
	Scope    memory.Scope
	Options  []provider.CallOption
	Metadata map[string]any
}

/*
Retrieval is what the memory search produced. A failed search is not an
error: Degraded is set, Err holds the cause and generation goes on without
memory context.
*/
type Retrieval struct {
	Memories  []memory.Memory   `json:"memories,omitempty"`
	Relations []memory.Relation `json:"relations,omitempty"`
	Degraded  bool              `json:"degraded"`
	Err       error             `json:"-"`
}

/*
Persistence reports the write-back. Unauthorized separates a rejected key
from an unreachable service. Pending is set while an asynchronous write is
still in flight.
*/
type Persistence struct {
	Attempted    bool  `json:"attempted"`
	Pending      bool  `json:"pending,omitempty"`
	Unauthorized bool  `json:"unauthorized,omitempty"`
	Err          error `json:"-"`
}

type Result struct {
	Generation  *provider.GenerationResult `json:"generation"`
	Retrieval   Retrieval                  `json:"retrieval"`
	Persistence Persistence                `json:"persistence"`
}

/*
Orchestrator runs memory-augmented generation: flatten, retrieve, augment,
generate, persist. It holds no per-call state and is safe for concurrent use.
*/
type Orchestrator struct {
	adapter        provider.Adapter
	gateway        MemoryGateway
	topK           int
	graph          bool
	filterMode     memory.FilterMode
	flattenMode    message.FlattenMode
	persistTimeout time.Duration
	async          bool
	systemPrompt   string
	metrics        *metrics.GenerationMetrics
	wg             sync.WaitGroup
}

/*
NewOrchestrator wires an adapter to a memory gateway. A nil gateway turns
memory off entirely.
*/
func NewOrchestrator(adapter provider.Adapter, gateway MemoryGateway, options ...Option) *Orchestrator {
	orchestrator := &Orchestrator{
		adapter:        adapter,
		gateway:        gateway,
		topK:           memory.DefaultTopK,
		flattenMode:    message.FlattenUser,
		persistTimeout: defaultPersistTimeout,
		metrics:        metrics.NewGenerationMetrics(),
	}

	for _, option := range options {
		option(orchestrator)
	}

	return orchestrator
}

func (orchestrator *Orchestrator) Metrics() *metrics.GenerationMetrics {
	return orchestrator.metrics
}

/*
Generate answers a request. Only generation failures are returned as
errors; memory failures are reported on the result.
*/
func (orchestrator *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := orchestrator.startSpan(ctx, "ai.generate", req)
	defer span.End()

	retrieval := orchestrator.retrieve(ctx, req)
	msgs := orchestrator.augment(req.Messages, retrieval)

	started := time.Now()
	generation, err := orchestrator.adapter.GenerateResponse(ctx, msgs, req.Options...)
	orchestrator.metrics.RecordGeneration(err != nil, time.Since(started))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("ai.tool_calls", len(generation.ToolCalls)))

	turns := orchestrator.turns(req.Messages, generation.Text)

	return &Result{
		Generation:  generation,
		Retrieval:   retrieval,
		Persistence: orchestrator.persist(ctx, turns, req),
	}, nil
}

/*
Wait blocks until every asynchronous write-back has finished.
*/
func (orchestrator *Orchestrator) Wait() {
	orchestrator.wg.Wait()
}

func (orchestrator *Orchestrator) startSpan(
	ctx context.Context, name string, req Request,
) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("ai.provider", string(orchestrator.adapter.Kind())),
		attribute.String("ai.model", orchestrator.adapter.Model()),
		attribute.Int("ai.messages", len(req.Messages)),
	))
}

func (orchestrator *Orchestrator) retrieve(ctx context.Context, req Request) Retrieval {
	if orchestrator.gateway == nil || req.Scope.IsEmpty() {
		return Retrieval{}
	}

	query := message.Flatten(req.Messages, orchestrator.flattenMode)

	if query == "" {
		return Retrieval{}
	}

	ctx, span := tracer.Start(ctx, "ai.retrieve")
	defer span.End()

	started := time.Now()

	result, err := orchestrator.gateway.Search(ctx, query, req.Scope, memory.SearchOptions{
		TopK:        orchestrator.topK,
		Mode:        orchestrator.filterMode,
		EnableGraph: orchestrator.graph,
	})

	orchestrator.metrics.RecordRetrieval(err != nil, time.Since(started))

	if err != nil {
		log.Warn("memory retrieval failed, continuing without memories", "error", err)
		span.RecordError(err)
		return Retrieval{Degraded: true, Err: err}
	}

	span.SetAttributes(
		attribute.Int("ai.memories", len(result.Memories)),
		attribute.Int("ai.relations", len(result.Relations)),
	)

	log.Debug("retrieved memories", "count", len(result.Memories), "relations", len(result.Relations))

	retrieval := Retrieval{Memories: result.Memories}

	if orchestrator.graph {
		retrieval.Relations = result.Relations
	}

	return retrieval
}

/*
augment puts the memory system prompt in front of the caller's messages.
The caller's own system turns stay where they are.
*/
func (orchestrator *Orchestrator) augment(msgs []message.Message, retrieval Retrieval) []message.Message {
	system := BuildSystemPrompt(retrieval.Memories, retrieval.Relations, orchestrator.systemPrompt)

	if system == "" {
		return msgs
	}

	out := make([]message.Message, 0, len(msgs)+1)
	out = append(out, message.System(system))

	return append(out, msgs...)
}

/*
turns picks what is written back: the last user turn and the reply.
*/
func (orchestrator *Orchestrator) turns(msgs []message.Message, reply string) []message.Message {
	var out []message.Message

	if user := userTurn(msgs); user != nil {
		out = append(out, *user)
	}

	if reply != "" {
		out = append(out, message.Assistant(reply))
	}

	return out
}

func userTurn(msgs []message.Message) *message.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleUser {
			return &msgs[i]
		}
	}

	return nil
}

/*
persist writes turns back under the request scope. The write runs on a
context detached from the caller, bounded by the persist timeout, so that a
finished or cancelled caller neither aborts nor leaks it.
*/
func (orchestrator *Orchestrator) persist(
	ctx context.Context, turns []message.Message, req Request,
) Persistence {
	if orchestrator.gateway == nil || req.Scope.IsEmpty() || len(turns) == 0 {
		return Persistence{}
	}

	detached := context.WithoutCancel(ctx)

	if orchestrator.async {
		orchestrator.wg.Add(1)

		go func() {
			defer orchestrator.wg.Done()
			orchestrator.write(detached, turns, req)
		}()

		return Persistence{Attempted: true, Pending: true}
	}

	return orchestrator.write(detached, turns, req)
}

func (orchestrator *Orchestrator) write(
	ctx context.Context, turns []message.Message, req Request,
) Persistence {
	ctx, cancel := context.WithTimeout(ctx, orchestrator.persistTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "ai.persist", trace.WithAttributes(
		attribute.Int("ai.turns", len(turns)),
	))
	defer span.End()

	_, err := orchestrator.gateway.Add(ctx, turns, req.Scope, memory.AddOptions{Metadata: req.Metadata})
	orchestrator.metrics.RecordPersist(err != nil)

	if err == nil {
		return Persistence{Attempted: true}
	}

	span.RecordError(err)

	persistence := Persistence{Attempted: true, Err: err, Unauthorized: errors.IsUnauthorized(err)}

	if persistence.Unauthorized {
		log.Error("memory write-back rejected, check the memory API key", "error", err)
	} else {
		log.Warn("memory write-back failed", "error", err)
	}

	return persistence
}
