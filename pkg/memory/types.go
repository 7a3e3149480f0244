package memory

import (
	"bytes"
	"encoding/json"
)

/*
Memory is one stored or retrieved memory. Score is only set on search
results.
*/
type Memory struct {
	ID         string         `json:"id"`
	Text       string         `json:"memory"`
	Hash       string         `json:"hash,omitempty"`
	Score      float64        `json:"score,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	AgentID    string         `json:"agent_id,omitempty"`
	AppID      string         `json:"app_id,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
}

/*
Relation is a graph edge, only returned when graph retrieval is enabled.
*/
type Relation struct {
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Target       string `json:"target"`
}

func (rel *Relation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source       string `json:"source"`
		Relationship string `json:"relationship"`
		Target       string `json:"target"`
		Destination  string `json:"destination"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rel.Source = raw.Source
	rel.Relationship = raw.Relationship
	rel.Target = raw.Target

	if rel.Target == "" {
		rel.Target = raw.Destination
	}

	return nil
}

/*
SearchResult is the outcome of a search.
*/
type SearchResult struct {
	Memories  []Memory   `json:"results"`
	Relations []Relation `json:"relations,omitempty"`
}

/*
Event describes what an add did to one memory.
*/
type Event struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
	Event  string `json:"event"`
}

/*
HistoryEntry is one revision of a memory.
*/
type HistoryEntry struct {
	ID        string `json:"id"`
	MemoryID  string `json:"memory_id"`
	OldMemory string `json:"old_memory,omitempty"`
	NewMemory string `json:"new_memory,omitempty"`
	Event     string `json:"event"`
	CreatedAt string `json:"created_at,omitempty"`
}

/*
Ping is returned by Validate.
*/
type Ping struct {
	Status    string `json:"status,omitempty"`
	OrgID     string `json:"org_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

type SearchOptions struct {
	TopK        int
	Mode        FilterMode
	EnableGraph bool
	Threshold   float64
	Rerank      bool
}

type AddOptions struct {
	Metadata map[string]any
	Infer    *bool
	Async    bool
}

/*
decodeList accepts either a bare array or an object wrapping it under
"results", which the service returns depending on version.
*/
func decodeList[T any](data []byte) ([]T, []Relation, error) {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var items []T
		err := json.Unmarshal(data, &items)
		return items, nil, err
	}

	var wrapped struct {
		Results   []T        `json:"results"`
		Relations []Relation `json:"relations"`
	}

	err := json.Unmarshal(data, &wrapped)
	return wrapped.Results, wrapped.Relations, err
}
