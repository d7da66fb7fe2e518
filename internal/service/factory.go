package service

import (
	"context"
	"log/slog"
	"sync"

	redisadapter "github.com/wikirace/wikipath/internal/adapter/redis"
	"github.com/wikirace/wikipath/internal/adapter/ristretto"
	"github.com/wikirace/wikipath/internal/adapter/tiered"
	"github.com/wikirace/wikipath/internal/adapter/wikipedia"
	"github.com/wikirace/wikipath/internal/config"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/engine"
	"github.com/wikirace/wikipath/internal/port/kvstore"
	"github.com/wikirace/wikipath/internal/port/workqueue"
	"github.com/wikirace/wikipath/internal/resilience"
)

// Factory is the process-wide, lazily initialized registry for shared
// infrastructure: the Redis pool, the KV store and work queue views, the
// tiered link cache, and the upstream client. The HTTP client and Redis
// pool must be shared across all tasks in one process, so construction
// goes through here rather than ad hoc wiring.
type Factory struct {
	mu  sync.Mutex
	cfg *config.Config

	redis *redisadapter.Client
	store kvstore.Store
	queue workqueue.Queue
	l1    *ristretto.Cache
	wiki  *wikipedia.Client
}

// NewFactory creates an empty registry. Nothing connects until first use.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// client connects the Redis pool on first use. Callers hold f.mu.
func (f *Factory) client(ctx context.Context) (*redisadapter.Client, error) {
	if f.redis == nil {
		c, err := redisadapter.Connect(ctx, f.cfg.Redis)
		if err != nil {
			return nil, err
		}
		f.redis = c
	}
	return f.redis, nil
}

// Store returns the shared KV store view.
func (f *Factory) Store(ctx context.Context) (kvstore.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		c, err := f.client(ctx)
		if err != nil {
			return nil, err
		}
		f.store = redisadapter.NewStore(c)
	}
	return f.store, nil
}

// WorkQueue returns the shared work queue view.
func (f *Factory) WorkQueue(ctx context.Context) (workqueue.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue == nil {
		c, err := f.client(ctx)
		if err != nil {
			return nil, err
		}
		f.queue = redisadapter.NewQueue(c)
	}
	return f.queue, nil
}

// Wikipedia returns the shared upstream client, wired with the tiered
// link cache and a circuit breaker.
func (f *Factory) Wikipedia(ctx context.Context) (*wikipedia.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.wiki == nil {
		c, err := f.client(ctx)
		if err != nil {
			return nil, err
		}

		l1, err := ristretto.New(f.cfg.Cache.L1MaxBytes)
		if err != nil {
			return nil, err
		}
		f.l1 = l1

		linkCache := tiered.New(l1, redisadapter.NewStore(c), f.cfg.Cache.L1Expire)
		f.wiki = wikipedia.NewClient(f.cfg.Wikipedia, linkCache, f.cfg.Cache.LinkTTL)
		f.wiki.SetBreaker(resilience.NewBreaker(f.cfg.Breaker.MaxFailures, f.cfg.Breaker.Timeout))
		slog.Info("wikipedia client created",
			"api_url", f.cfg.Wikipedia.APIURL,
			"max_workers", f.cfg.Wikipedia.MaxWorkers,
			"link_ttl", f.cfg.Cache.LinkTTL,
		)
	}
	return f.wiki, nil
}

// SearchService builds a per-request search orchestrator. The finder is
// constructed fresh so the progress callback binds to one task, while the
// heavy dependencies underneath are the shared singletons.
func (f *Factory) SearchService(ctx context.Context, algorithm search.Algorithm, onProgress engine.ProgressFunc) (*SearchService, error) {
	wiki, err := f.Wikipedia(ctx)
	if err != nil {
		return nil, err
	}
	store, err := f.Store(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := f.WorkQueue(ctx)
	if err != nil {
		return nil, err
	}

	bfs := engine.NewBFS(wiki, store, queue, engine.Options{
		MaxDepth:      f.cfg.Search.MaxDepth,
		SessionTTL:    f.cfg.Search.SessionTTL,
		ProgressEvery: f.cfg.Search.ProgressStep,
		OnProgress:    onProgress,
	})

	var finder engine.PathFinder = bfs
	if algorithm == search.AlgorithmBidirectional {
		finder = engine.NewBidirectional(bfs)
	}

	return NewSearchService(finder, store, f.cfg.Search.ResultTTL), nil
}

// ExploreService builds the explore orchestrator on the shared singletons.
func (f *Factory) ExploreService(ctx context.Context) (*ExploreService, error) {
	wiki, err := f.Wikipedia(ctx)
	if err != nil {
		return nil, err
	}
	store, err := f.Store(ctx)
	if err != nil {
		return nil, err
	}
	return NewExploreService(wiki, store, f.cfg.Search.ExploreTTL), nil
}

// Teardown closes the pool and in-process caches. Used on graceful
// shutdown and on test reset; the factory can be reused afterwards.
func (f *Factory) Teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.l1 != nil {
		f.l1.Close()
		f.l1 = nil
	}
	if f.redis != nil {
		if err := f.redis.Close(); err != nil {
			slog.Error("redis close failed", "error", err)
		}
		f.redis = nil
	}
	f.store = nil
	f.queue = nil
	f.wiki = nil
	slog.Info("service factory torn down")
}
