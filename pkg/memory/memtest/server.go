/*
Package memtest runs an in-process stand-in for the hosted memory service,
good enough to exercise the gateway client and everything built on it.
*/
package memtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

/*
Record is a stored memory.
*/
type Record struct {
	ID       string         `json:"id"`
	Memory   string         `json:"memory"`
	Role     string         `json:"role,omitempty"`
	UserID   string         `json:"user_id,omitempty"`
	AgentID  string         `json:"agent_id,omitempty"`
	AppID    string         `json:"app_id,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

/*
Server is a fake memory service. Searches score records by word overlap
with the query.
*/
type Server struct {
	*httptest.Server

	APIKey string

	mu        sync.Mutex
	records   []Record
	relations []map[string]string
	bodies    []map[string]any
	fail      map[string]int
	nextID    int

	Requests atomic.Int64
	Searches atomic.Int64
	Adds     atomic.Int64
}

func NewServer(apiKey string) *Server {
	srv := &Server{APIKey: apiKey, fail: make(map[string]int)}
	srv.Server = httptest.NewServer(http.HandlerFunc(srv.handle))
	return srv
}

/*
FailWith makes every request for op ("search", "add", ...) answer status.
*/
func (srv *Server) FailWith(op string, status int) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.fail[op] = status
}

/*
Seed stores a record directly.
*/
func (srv *Server) Seed(rec Record) Record {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	return srv.store(rec)
}

func (srv *Server) SeedRelation(source, relationship, destination string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.relations = append(srv.relations, map[string]string{
		"source": source, "relationship": relationship, "destination": destination,
	})
}

func (srv *Server) Records() []Record {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	return append([]Record(nil), srv.records...)
}

/*
Bodies returns the decoded JSON bodies received, in order.
*/
func (srv *Server) Bodies() []map[string]any {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	return append([]map[string]any(nil), srv.bodies...)
}

func (srv *Server) store(rec Record) Record {
	srv.nextID++
	rec.ID = fmt.Sprintf("mem-%d", srv.nextID)
	srv.records = append(srv.records, rec)
	return rec
}

func (srv *Server) handle(w http.ResponseWriter, r *http.Request) {
	srv.Requests.Add(1)

	if r.Header.Get("Authorization") != "Token "+srv.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid API key"})
		return
	}

	var body map[string]any

	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	op := route(r)

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.bodies = append(srv.bodies, body)

	if status, ok := srv.fail[op]; ok {
		writeJSON(w, status, map[string]string{"detail": "injected failure"})
		return
	}

	switch op {
	case "search":
		srv.Searches.Add(1)
		srv.search(w, body)
	case "add":
		srv.Adds.Add(1)
		srv.add(w, body)
	case "get_all":
		writeJSON(w, http.StatusOK, srv.filter(r.URL.Query().Get("user_id")))
	case "delete_all":
		srv.records = srv.without(r.URL.Query().Get("user_id"))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Memories deleted successfully!"})
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "org_id": "org-1", "project_id": "proj-1"})
	case "get", "update", "delete", "history":
		srv.byID(w, r, op, body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	}
}

func route(r *http.Request) string {
	path := r.URL.Path

	switch {
	case path == "/v2/memories/search/":
		return "search"
	case path == "/v1/ping/":
		return "ping"
	case path == "/v1/memories/" && r.Method == http.MethodPost:
		return "add"
	case path == "/v1/memories/" && r.Method == http.MethodGet:
		return "get_all"
	case path == "/v1/memories/" && r.Method == http.MethodDelete:
		return "delete_all"
	case strings.HasSuffix(path, "/history/"):
		return "history"
	case strings.HasPrefix(path, "/v1/memories/"):
		switch r.Method {
		case http.MethodPut:
			return "update"
		case http.MethodDelete:
			return "delete"
		default:
			return "get"
		}
	}

	return ""
}

func (srv *Server) search(w http.ResponseWriter, body map[string]any) {
	query, _ := body["query"].(string)
	topK := 10

	if k, ok := body["top_k"].(float64); ok && k > 0 {
		topK = int(k)
	}

	results := make([]Record, 0)

	for _, rec := range srv.records {
		if !matches(rec, body["filters"]) {
			continue
		}

		if score := overlap(query, rec.Memory); score > 0 {
			rec.Score = score
			results = append(results, rec)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if len(results) > topK {
		results = results[:topK]
	}

	out := map[string]any{"results": results}

	if graph, _ := body["enable_graph"].(bool); graph {
		out["relations"] = srv.relations
	}

	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) add(w http.ResponseWriter, body map[string]any) {
	turns, _ := body["messages"].([]any)
	events := make([]map[string]string, 0, len(turns))
	metadata, _ := body["metadata"].(map[string]any)

	for _, turn := range turns {
		msg, _ := turn.(map[string]any)
		content, _ := msg["content"].(string)
		role, _ := msg["role"].(string)

		if content == "" {
			continue
		}

		rec := srv.store(Record{
			Memory:   content,
			Role:     role,
			UserID:   str(body["user_id"]),
			AgentID:  str(body["agent_id"]),
			AppID:    str(body["app_id"]),
			RunID:    str(body["run_id"]),
			Metadata: metadata,
		})

		events = append(events, map[string]string{"id": rec.ID, "memory": rec.Memory, "event": "ADD"})
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": events})
}

func (srv *Server) byID(w http.ResponseWriter, r *http.Request, op string, body map[string]any) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/memories/"), "/"), "/")
	id := parts[0]

	for i, rec := range srv.records {
		if rec.ID != id {
			continue
		}

		switch op {
		case "update":
			srv.records[i].Memory = str(body["text"])

			if meta, ok := body["metadata"].(map[string]any); ok {
				srv.records[i].Metadata = meta
			}

			writeJSON(w, http.StatusOK, srv.records[i])
		case "delete":
			srv.records = append(srv.records[:i], srv.records[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Memory deleted successfully!"})
		case "history":
			writeJSON(w, http.StatusOK, []map[string]string{
				{"id": "h-1", "memory_id": id, "new_memory": rec.Memory, "event": "ADD"},
			})
		default:
			writeJSON(w, http.StatusOK, rec)
		}

		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Memory not found"})
}

func (srv *Server) filter(userID string) []Record {
	out := make([]Record, 0)

	for _, rec := range srv.records {
		if userID == "" || rec.UserID == userID {
			out = append(out, rec)
		}
	}

	return out
}

func (srv *Server) without(userID string) []Record {
	out := make([]Record, 0)

	for _, rec := range srv.records {
		if rec.UserID != userID {
			out = append(out, rec)
		}
	}

	return out
}

func matches(rec Record, filters any) bool {
	doc, ok := filters.(map[string]any)

	if !ok {
		return true
	}

	fields := map[string]string{
		"user_id": rec.UserID, "agent_id": rec.AgentID, "app_id": rec.AppID, "run_id": rec.RunID,
	}

	check := func(clauses any, all bool) bool {
		list, _ := clauses.([]any)

		for _, clause := range list {
			kv, _ := clause.(map[string]any)
			hit := true

			for key, want := range kv {
				if fields[key] != str(want) {
					hit = false
				}
			}

			if all && !hit {
				return false
			}

			if !all && hit {
				return true
			}
		}

		return all
	}

	if clauses, ok := doc["AND"]; ok {
		return check(clauses, true)
	}

	return check(doc["OR"], false)
}

func overlap(query, text string) float64 {
	words := tokens(query)

	if len(words) == 0 {
		return 0
	}

	have := make(map[string]bool)

	for _, word := range tokens(text) {
		have[word] = true
	}

	hits := 0

	for _, word := range words {
		if have[word] {
			hits++
		}
	}

	return float64(hits) / float64(len(words))
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
