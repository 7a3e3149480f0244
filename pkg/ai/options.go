package ai

import (
	"time"

	"github.com/theapemachine/mem0-go/pkg/memory"
	"github.com/theapemachine/mem0-go/pkg/message"
	"github.com/theapemachine/mem0-go/pkg/metrics"
)

const (
	defaultPersistTimeout = 30 * time.Second
	streamBuffer          = 16
)

/*
Option configures an Orchestrator.
*/
type Option func(*Orchestrator)

/*
WithTopK sets how many memories are retrieved per call.
*/
func WithTopK(topK int) Option {
	return func(orchestrator *Orchestrator) {
		if topK > 0 {
			orchestrator.topK = topK
		}
	}
}

/*
WithGraph enables graph-augmented retrieval, adding relations to the prompt.
*/
func WithGraph(enabled bool) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.graph = enabled
	}
}

func WithFilterMode(mode memory.FilterMode) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.filterMode = mode
	}
}

/*
WithFlattenMode decides which turns make up the retrieval query.
*/
func WithFlattenMode(mode message.FlattenMode) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.flattenMode = mode
	}
}

/*
WithPersistTimeout bounds every write-back, including the detached ones
issued after a caller went away.
*/
func WithPersistTimeout(timeout time.Duration) Option {
	return func(orchestrator *Orchestrator) {
		if timeout > 0 {
			orchestrator.persistTimeout = timeout
		}
	}
}

/*
WithAsyncPersist makes Generate return before the write-back finished. Wait
blocks until pending writes are done.
*/
func WithAsyncPersist(async bool) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.async = async
	}
}

/*
WithSystemPrompt sets base system text placed ahead of the memory section.
*/
func WithSystemPrompt(prompt string) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.systemPrompt = prompt
	}
}

func WithMetrics(recorder *metrics.GenerationMetrics) Option {
	return func(orchestrator *Orchestrator) {
		orchestrator.metrics = recorder
	}
}
