package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// globalTag is bumped by writes whose scope is unknown, such as updates by id.
const globalTag = "*"

/*
SearchCache stores search results. Every write through the Client bumps the
generation of the affected scope tags, and the generations are part of the
cache key, so a search after a write never sees a stale result.
*/
type SearchCache interface {
	Get(ctx context.Context, key string) (*SearchResult, bool)
	Set(ctx context.Context, key string, result *SearchResult, ttl time.Duration)
	Generation(ctx context.Context, tag string) uint64
	Bump(ctx context.Context, tag string)
}

func (client *Client) searchKey(ctx context.Context, query string, scope Scope, opts SearchOptions) string {
	tags := append(scope.tags(), globalTag)
	sort.Strings(tags)

	gens := make([]string, 0, len(tags))

	for _, tag := range tags {
		gens = append(gens, fmt.Sprintf("%s@%d", tag, client.cache.Generation(ctx, tag)))
	}

	raw, _ := json.Marshal(struct {
		Query string
		Scope Scope
		Opts  SearchOptions
		Gens  string
	}{query, scope, opts, strings.Join(gens, ",")})

	return uuid.NewSHA1(uuid.NameSpaceURL, raw).String()
}

func (client *Client) invalidate(ctx context.Context, scope Scope) {
	if client.cache == nil {
		return
	}

	tags := scope.tags()

	if len(tags) == 0 {
		tags = []string{globalTag}
	}

	for _, tag := range tags {
		client.cache.Bump(ctx, tag)
	}
}

/*
RistrettoCache keeps search results in process.
*/
type RistrettoCache struct {
	store *ristretto.Cache
	mu    sync.Mutex
	gens  map[string]uint64
}

func NewRistrettoCache(maxEntries int64) (*RistrettoCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}

	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})

	if err != nil {
		return nil, err
	}

	return &RistrettoCache{store: store, gens: make(map[string]uint64)}, nil
}

func (cache *RistrettoCache) Get(_ context.Context, key string) (*SearchResult, bool) {
	value, ok := cache.store.Get(key)

	if !ok {
		return nil, false
	}

	result, ok := value.(*SearchResult)
	return result, ok
}

func (cache *RistrettoCache) Set(_ context.Context, key string, result *SearchResult, ttl time.Duration) {
	cache.store.SetWithTTL(key, result, 1, ttl)
	cache.store.Wait()
}

func (cache *RistrettoCache) Generation(_ context.Context, tag string) uint64 {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	return cache.gens[tag]
}

func (cache *RistrettoCache) Bump(_ context.Context, tag string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.gens[tag]++
}

func (cache *RistrettoCache) Close() {
	cache.store.Close()
}

/*
RedisCache shares search results between processes. Redis failures are
treated as cache misses.
*/
type RedisCache struct {
	conn   *redis.Client
	prefix string
}

func NewRedisCache(conn *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "mem0go"
	}

	return &RedisCache{conn: conn, prefix: prefix}
}

func (cache *RedisCache) Get(ctx context.Context, key string) (*SearchResult, bool) {
	data, err := cache.conn.Get(ctx, cache.prefix+":search:"+key).Bytes()

	if err != nil {
		if err != redis.Nil {
			log.Debug("search cache unavailable", "error", err)
		}

		return nil, false
	}

	var result SearchResult

	if err = json.Unmarshal(data, &result); err != nil {
		return nil, false
	}

	return &result, true
}

func (cache *RedisCache) Set(ctx context.Context, key string, result *SearchResult, ttl time.Duration) {
	data, err := json.Marshal(result)

	if err != nil {
		return
	}

	if err = cache.conn.Set(ctx, cache.prefix+":search:"+key, data, ttl).Err(); err != nil {
		log.Debug("search cache write failed", "error", err)
	}
}

func (cache *RedisCache) Generation(ctx context.Context, tag string) uint64 {
	gen, err := cache.conn.Get(ctx, cache.prefix+":gen:"+tag).Uint64()

	if err != nil && err != redis.Nil {
		log.Debug("search cache generation unavailable", "error", err)
	}

	return gen
}

func (cache *RedisCache) Bump(ctx context.Context, tag string) {
	if err := cache.conn.Incr(ctx, cache.prefix+":gen:"+tag).Err(); err != nil {
		log.Warn("failed to invalidate search cache", "tag", tag, "error", err)
	}
}
