package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/wikirace/wikipath/internal/domain"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/engine"
	"github.com/wikirace/wikipath/internal/port/kvstore"
)

// DefaultExploreLinks caps the star graph when the request does not
// specify max_links.
const DefaultExploreLinks = 10

// ExploreService builds the star graph of a page and its first outgoing
// links for visualization.
type ExploreService struct {
	links      engine.LinkSource
	store      kvstore.Store
	exploreTTL time.Duration
}

// NewExploreService creates an explore orchestrator.
func NewExploreService(links engine.LinkSource, store kvstore.Store, exploreTTL time.Duration) *ExploreService {
	return &ExploreService{links: links, store: store, exploreTTL: exploreTTL}
}

func exploreKey(startPage string, maxLinks int) string {
	return "explore:" + startPage + ":" + strconv.Itoa(maxLinks)
}

// Explore returns the page's outgoing links as nodes and edges, capped at
// the requested link count.
func (s *ExploreService) Explore(ctx context.Context, req search.ExploreRequest) (*search.ExploreResult, error) {
	if !req.Valid() {
		return nil, fmt.Errorf("%w: start page cannot be empty", domain.ErrInvalidPage)
	}

	maxLinks := req.MaxLinks
	if maxLinks <= 0 {
		maxLinks = DefaultExploreLinks
	}

	key := exploreKey(req.StartPage, maxLinks)
	if cached, ok, err := s.store.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		var result search.ExploreResult
		if err := json.Unmarshal(cached, &result); err == nil {
			slog.Info("explore served from cache", "start", req.StartPage)
			return &result, nil
		}
		slog.Warn("discarding corrupt explore cache entry", "key", key)
	}

	if !s.links.PageExists(ctx, req.StartPage) {
		return nil, fmt.Errorf("%w: page %q does not exist", domain.ErrInvalidPage, req.StartPage)
	}

	bulk, err := s.links.GetLinksBulk(ctx, []string{req.StartPage})
	if err != nil {
		return nil, err
	}
	allLinks := bulk[req.StartPage]

	limited := allLinks
	if len(limited) > maxLinks {
		limited = limited[:maxLinks]
	}

	result := &search.ExploreResult{
		StartPage:  req.StartPage,
		Nodes:      append([]string{req.StartPage}, limited...),
		Edges:      make([][2]string, 0, len(limited)),
		TotalLinks: len(allLinks),
	}
	for _, link := range limited {
		result.Edges = append(result.Edges, [2]string{req.StartPage, link})
	}

	if data, err := json.Marshal(result); err == nil {
		if err := s.store.Set(ctx, key, data, s.exploreTTL); err != nil {
			slog.Error("explore cache write failed", "key", key, "error", err)
		}
	}

	slog.Info("explore completed", "start", req.StartPage, "links_shown", len(limited), "total_links", len(allLinks))
	return result, nil
}
