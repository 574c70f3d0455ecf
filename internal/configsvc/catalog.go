package configsvc

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lakehouse-apps/chat-config-manager/internal/dbx"
	"github.com/lakehouse-apps/chat-config-manager/internal/metrics"
)

// EndpointInfo is one serving endpoint shown in the admin UI.
type EndpointInfo struct {
	Name  string `json:"name"`
	Ready string `json:"ready,omitempty"`
	Task  string `json:"task,omitempty"`
}

// EndpointSource lists serving endpoints from the workspace.
type EndpointSource interface {
	ListEndpoints(ctx context.Context) ([]dbx.ServingEndpoint, error)
}

// Catalog caches the serving endpoint listing. Redis holds the shared
// cache when available; otherwise an in-process copy is kept.
type Catalog struct {
	source EndpointSource
	redis  redis.UniversalClient
	logger *log.Logger
	ttl    time.Duration
	key    string

	mu      sync.Mutex
	local   []EndpointInfo
	refresh time.Time
}

// CatalogOptions configure the catalog.
type CatalogOptions struct {
	Source EndpointSource
	Redis  redis.UniversalClient
	Logger *log.Logger
	TTL    time.Duration
	Key    string
}

// NewCatalog creates an endpoint catalog.
func NewCatalog(opts CatalogOptions) *Catalog {
	key := opts.Key
	if key == "" {
		key = "chat-config:endpoints"
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Catalog{
		source: opts.Source,
		redis:  opts.Redis,
		logger: opts.Logger,
		ttl:    opts.TTL,
		key:    key,
	}
}

// Available returns the cached endpoint listing, refreshing it from the
// workspace when stale. Any failure yields an empty slice.
func (c *Catalog) Available(ctx context.Context) []EndpointInfo {
	if cached, ok := c.fromCache(ctx); ok {
		return cached
	}

	started := time.Now()
	endpoints, err := c.source.ListEndpoints(ctx)
	if err != nil {
		metrics.ObserveCatalogRefresh(time.Since(started), false)
		c.logger.Printf("catalog: endpoint listing failed: %v", err)
		return []EndpointInfo{}
	}

	infos := make([]EndpointInfo, 0, len(endpoints))
	for _, e := range endpoints {
		infos = append(infos, EndpointInfo{Name: e.Name, Ready: e.State.Ready, Task: e.Task})
	}
	metrics.ObserveCatalogRefresh(time.Since(started), true)
	c.save(ctx, infos)
	return infos
}

// Invalidate drops the cached listing.
func (c *Catalog) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.local = nil
	c.refresh = time.Time{}
	c.mu.Unlock()
	if c.redis != nil {
		if err := c.redis.Del(ctx, c.key).Err(); err != nil {
			c.logger.Printf("catalog: cache invalidation failed: %v", err)
		}
	}
}

func (c *Catalog) fromCache(ctx context.Context) ([]EndpointInfo, bool) {
	if c.redis != nil {
		payload, err := c.redis.Get(ctx, c.key).Bytes()
		if err == nil {
			var infos []EndpointInfo
			if err := json.Unmarshal(payload, &infos); err == nil {
				return infos, true
			}
		} else if err != redis.Nil {
			c.logger.Printf("catalog: cache read failed: %v", err)
		}
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local != nil && time.Since(c.refresh) < c.ttl {
		out := make([]EndpointInfo, len(c.local))
		copy(out, c.local)
		return out, true
	}
	return nil, false
}

func (c *Catalog) save(ctx context.Context, infos []EndpointInfo) {
	if c.redis != nil {
		payload, err := json.Marshal(infos)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
			c.logger.Printf("catalog: cache write failed: %v", err)
		}
		return
	}

	c.mu.Lock()
	c.local = infos
	c.refresh = time.Now()
	c.mu.Unlock()
}
