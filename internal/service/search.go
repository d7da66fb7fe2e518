// Package service orchestrates pathfinding operations on top of the
// engine, the upstream client, and the KV store.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wikirace/wikipath/internal/domain"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/engine"
	"github.com/wikirace/wikipath/internal/port/kvstore"
)

// SearchService runs a single pathfinding request: validation, result
// cache, timing, and the engine call.
type SearchService struct {
	finder    engine.PathFinder
	store     kvstore.Store
	resultTTL time.Duration
}

// NewSearchService creates a search orchestrator around the given finder.
func NewSearchService(finder engine.PathFinder, store kvstore.Store, resultTTL time.Duration) *SearchService {
	return &SearchService{finder: finder, store: store, resultTTL: resultTTL}
}

func resultKey(startPage, endPage string) string {
	return "path:" + startPage + ":" + endPage
}

// FindPath returns the shortest path for the request, serving repeated
// searches from the result cache. Engine error kinds propagate unchanged;
// negative outcomes are never cached.
func (s *SearchService) FindPath(ctx context.Context, req search.Request) (*search.PathResult, error) {
	if !req.Valid() {
		return nil, fmt.Errorf("%w: start and end pages cannot be empty", domain.ErrInvalidPage)
	}

	key := resultKey(req.StartPage, req.EndPage)
	if cached, ok, err := s.store.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		var result search.PathResult
		if err := json.Unmarshal(cached, &result); err == nil {
			slog.Info("path served from cache", "start", req.StartPage, "end", req.EndPage)
			return &result, nil
		}
		slog.Warn("discarding corrupt result cache entry", "key", key)
	}

	started := time.Now()
	res, err := s.finder.FindShortestPath(ctx, req.StartPage, req.EndPage)
	if err != nil {
		slog.Warn("pathfinding failed",
			"start", req.StartPage,
			"end", req.EndPage,
			"elapsed_s", time.Since(started).Seconds(),
			"error", err,
		)
		return nil, err
	}

	result := &search.PathResult{
		Path:          res.Path,
		Length:        len(res.Path),
		StartPage:     req.StartPage,
		EndPage:       req.EndPage,
		SearchTime:    time.Since(started).Seconds(),
		NodesExplored: res.NodesExplored,
	}

	if data, err := json.Marshal(result); err == nil {
		// The result is rebuildable; a failed cache write does not fail
		// the completed search.
		if err := s.store.Set(ctx, key, data, s.resultTTL); err != nil {
			slog.Error("result cache write failed", "key", key, "error", err)
		}
	}

	slog.Info("path found",
		"start", req.StartPage,
		"end", req.EndPage,
		"length", result.Length,
		"search_time_s", result.SearchTime,
		"nodes_explored", result.NodesExplored,
	)
	return result, nil
}
