package metrics

import (
	"sync"
	"time"
)

// GenerationMetrics tracks counters for memory-augmented generation calls.
type GenerationMetrics struct {
	mu sync.RWMutex

	// Generation metrics
	Generations       int64
	FailedGenerations int64
	GenerationTime    time.Duration

	// Stream metrics
	Streams        int64
	Deltas         int64
	AbortedStreams int64

	// Memory metrics
	Retrievals         int64
	DegradedRetrievals int64
	RetrievalTime      time.Duration
	Persists           int64
	FailedPersists     int64
}

// NewGenerationMetrics creates a new GenerationMetrics instance
func NewGenerationMetrics() *GenerationMetrics {
	return &GenerationMetrics{}
}

// RecordGeneration records one vendor call
func (m *GenerationMetrics) RecordGeneration(failed bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Generations++
	if failed {
		m.FailedGenerations++
	}
	m.GenerationTime += duration
}

// RecordStream records a finished stream and how many deltas it carried
func (m *GenerationMetrics) RecordStream(deltas int, aborted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Streams++
	m.Deltas += int64(deltas)
	if aborted {
		m.AbortedStreams++
	}
}

// RecordRetrieval records a memory search
func (m *GenerationMetrics) RecordRetrieval(degraded bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Retrievals++
	if degraded {
		m.DegradedRetrievals++
	}
	m.RetrievalTime += duration
}

// RecordPersist records a memory write-back
func (m *GenerationMetrics) RecordPersist(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Persists++
	if failed {
		m.FailedPersists++
	}
}

// GetMetrics returns a snapshot of the current metrics
func (m *GenerationMetrics) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"generations":         m.Generations,
		"failed_generations":  m.FailedGenerations,
		"avg_generation_time": average(m.GenerationTime, m.Generations),
		"streams":             m.Streams,
		"deltas":              m.Deltas,
		"aborted_streams":     m.AbortedStreams,
		"retrievals":          m.Retrievals,
		"degraded_retrievals": m.DegradedRetrievals,
		"avg_retrieval_time":  average(m.RetrievalTime, m.Retrievals),
		"persists":            m.Persists,
		"failed_persists":     m.FailedPersists,
	}
}

// Reset resets all metrics to zero
func (m *GenerationMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Generations = 0
	m.FailedGenerations = 0
	m.GenerationTime = 0
	m.Streams = 0
	m.Deltas = 0
	m.AbortedStreams = 0
	m.Retrievals = 0
	m.DegradedRetrievals = 0
	m.RetrievalTime = 0
	m.Persists = 0
	m.FailedPersists = 0
}

func average(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}

	return total.Seconds() / float64(count)
}
