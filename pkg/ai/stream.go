package ai

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/theapemachine/mem0-go/pkg/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

/*
Chunk is one element of a stream. Deltas arrive first; the last chunk has
Done set and carries either the assembled Result or Err.
*/
type Chunk struct {
	ID     string  `json:"id"`
	Delta  string  `json:"delta,omitempty"`
	Done   bool    `json:"done,omitempty"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

/*
Stream retrieves, augments and persists the user turn before returning, so a
caller that disconnects early still has its question recorded. The reply is
written back once the vendor stream ends, even if only partially received
because ctx was cancelled. The channel is closed after the final chunk.
*/
func (orchestrator *Orchestrator) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := orchestrator.startSpan(ctx, "ai.stream", req)

	retrieval := orchestrator.retrieve(ctx, req)
	msgs := orchestrator.augment(req.Messages, retrieval)

	var asked Persistence

	if user := userTurn(req.Messages); user != nil {
		asked = orchestrator.persist(ctx, []message.Message{*user}, req)
	}

	out := make(chan Chunk, streamBuffer)
	id := uuid.NewString()

	orchestrator.wg.Add(1)

	go func() {
		defer orchestrator.wg.Done()
		defer close(out)
		defer span.End()

		var (
			sb     strings.Builder
			deltas int
		)

		send := func(chunk Chunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		started := time.Now()

		generation, err := provider.StreamOrGenerate(ctx, orchestrator.adapter, msgs, func(delta string) {
			sb.WriteString(delta)
			deltas++
			send(Chunk{ID: id, Delta: delta})
		}, req.Options...)

		aborted := ctx.Err() != nil
		orchestrator.metrics.RecordGeneration(err != nil && !aborted, time.Since(started))
		orchestrator.metrics.RecordStream(deltas, aborted)

		reply := sb.String()

		if generation != nil && generation.Text != "" {
			reply = generation.Text
		}

		persisted := asked

		if reply != "" {
			persisted = orchestrator.persistReply(ctx, reply, req)
		}

		span.SetAttributes(attribute.Int("ai.deltas", deltas), attribute.Bool("ai.aborted", aborted))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream failed")

			if aborted {
				log.Info("stream cancelled by caller", "id", id, "received", len(reply))
			}

			send(Chunk{ID: id, Done: true, Err: err})
			return
		}

		send(Chunk{ID: id, Done: true, Result: &Result{
			Generation:  generation,
			Retrieval:   retrieval,
			Persistence: persisted,
		}})
	}()

	return out, nil
}

/*
persistReply always writes synchronously on a detached context: the stream
goroutine is already off the caller's path.
*/
func (orchestrator *Orchestrator) persistReply(ctx context.Context, reply string, req Request) Persistence {
	if orchestrator.gateway == nil || req.Scope.IsEmpty() {
		return Persistence{}
	}

	return orchestrator.write(context.WithoutCancel(ctx), []message.Message{message.Assistant(reply)}, req)
}
