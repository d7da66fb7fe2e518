package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wikirace/wikipath/internal/domain"
	"github.com/wikirace/wikipath/internal/port/kvstore"
	"github.com/wikirace/wikipath/internal/port/workqueue"
)

// visitedMark is the truthy presence marker for visited titles.
var visitedMark = []byte("1")

// Options configures a BFS engine.
type Options struct {
	// MaxDepth bounds the search; pages deeper than this are not expanded.
	MaxDepth int
	// SessionTTL bounds orphaned session state in the store.
	SessionTTL time.Duration
	// ProgressEvery invokes OnProgress every N frontier pops.
	ProgressEvery int
	// OnProgress receives advisory progress updates. May be nil.
	OnProgress ProgressFunc
}

// BFS is a breadth-first pathfinder whose queue, visited set, and
// per-vertex predecessor chains live in the shared key/value store, so a
// search can outgrow one worker's memory.
type BFS struct {
	links LinkSource
	store kvstore.Store
	queue workqueue.Queue
	opts  Options
}

// NewBFS creates a store-backed BFS pathfinder.
func NewBFS(links LinkSource, store kvstore.Store, queue workqueue.Queue, opts Options) *BFS {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 6
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 3
	}
	return &BFS{links: links, store: store, queue: queue, opts: opts}
}

// queueItem is one pending frontier entry.
type queueItem struct {
	Page  string `json:"page"`
	Depth int    `json:"depth"`
}

func queueKey(sid string) string          { return "bfs_queue:" + sid }
func visitedKey(sid, title string) string { return "bfs_visited:" + sid + ":" + title }
func pathsKey(sid, title string) string   { return "bfs_paths:" + sid + ":" + title }
func visitedPattern(sid string) string    { return "bfs_visited:" + sid + ":*" }
func pathsPattern(sid string) string      { return "bfs_paths:" + sid + ":*" }

// FindShortestPath returns the shortest chain of links from startPage to
// endPage, plus the number of frontier pops performed.
//
// Empty or nonexistent titles yield ErrInvalidPage; a drained frontier or
// exhausted depth budget yields ErrPathNotFound. ErrUpstreamAPI and
// ErrStoreUnavailable pass through for the task runtime to classify.
// Session state is removed on every exit; the TTL reclaims anything a
// failed cleanup leaves behind.
func (b *BFS) FindShortestPath(ctx context.Context, startPage, endPage string) (*Result, error) {
	startPage = strings.TrimSpace(startPage)
	endPage = strings.TrimSpace(endPage)

	if startPage == "" || endPage == "" {
		return nil, fmt.Errorf("%w: start and end pages cannot be empty", domain.ErrInvalidPage)
	}

	if !b.links.PageExists(ctx, startPage) {
		return nil, searchErr(ctx, fmt.Errorf("%w: start page %q does not exist", domain.ErrInvalidPage, startPage))
	}
	if !b.links.PageExists(ctx, endPage) {
		return nil, searchErr(ctx, fmt.Errorf("%w: end page %q does not exist", domain.ErrInvalidPage, endPage))
	}

	if startPage == endPage {
		return &Result{Path: []string{startPage}, NodesExplored: 1}, nil
	}

	sid := uuid.NewString()
	slog.Info("bfs session started", "sid", sid, "start", startPage, "end", endPage)
	defer b.cleanup(sid)

	if err := b.seed(ctx, sid, startPage); err != nil {
		return nil, searchErr(ctx, err)
	}

	res, err := b.run(ctx, sid, startPage, endPage)
	if err != nil {
		return nil, searchErr(ctx, err)
	}
	return res, nil
}

// searchErr prefers the context error once the search is canceled or timed
// out, so backend noise caused by the cancellation does not misclassify
// the outcome.
func searchErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// seed initializes the session: the start page enters the frontier at
// depth 0 with itself as its path.
func (b *BFS) seed(ctx context.Context, sid, startPage string) error {
	item, err := json.Marshal(queueItem{Page: startPage, Depth: 0})
	if err != nil {
		return fmt.Errorf("marshal seed item: %w", err)
	}
	if err := b.queue.Push(ctx, queueKey(sid), item); err != nil {
		return err
	}
	if err := b.store.Set(ctx, visitedKey(sid, startPage), visitedMark, b.opts.SessionTTL); err != nil {
		return err
	}
	return b.setPath(ctx, sid, startPage, []string{startPage})
}

func (b *BFS) run(ctx context.Context, sid, startPage, endPage string) (*Result, error) {
	nodesExplored := 0
	searchStart := time.Now()

	for {
		// The gap between pops is the safe point for cancellation.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		raw, err := b.queue.Pop(ctx, queueKey(sid))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			break
		}

		var item queueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			slog.Warn("dropping undecodable frontier item", "sid", sid, "error", err)
			continue
		}

		nodesExplored++

		if b.opts.OnProgress != nil && nodesExplored%b.opts.ProgressEvery == 0 {
			queueSize, err := b.queue.Length(ctx, queueKey(sid))
			if err != nil {
				return nil, err
			}
			b.opts.OnProgress(Progress{
				Status:        "Searching...",
				NodesExplored: nodesExplored,
				CurrentDepth:  item.Depth,
				LastNode:      item.Page,
				QueueSize:     queueSize,
				ElapsedSecs:   time.Since(searchStart).Seconds(),
			})
		}

		// BFS pops in depth order, so nothing shallower remains.
		if item.Depth > b.opts.MaxDepth {
			slog.Warn("depth bound reached", "sid", sid, "max_depth", b.opts.MaxDepth)
			break
		}

		currentPath, ok, err := b.getPath(ctx, sid, item.Page)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Stale session row (expired TTL); the vertex is unusable.
			slog.Warn("no stored path for page, skipping", "sid", sid, "page", item.Page)
			continue
		}

		bulk, err := b.links.GetLinksBulk(ctx, []string{item.Page})
		if err != nil {
			if errors.Is(err, domain.ErrUpstreamAPI) || errors.Is(err, domain.ErrStoreUnavailable) {
				return nil, err
			}
			slog.Error("link expansion failed, skipping vertex", "sid", sid, "page", item.Page, "error", err)
			continue
		}

		for _, link := range bulk[item.Page] {
			if link == endPage {
				// First discovery in BFS order is optimal.
				path := append(currentPath, link)
				slog.Info("path found", "sid", sid, "length", len(path), "nodes_explored", nodesExplored)
				return &Result{Path: path, NodesExplored: nodesExplored}, nil
			}

			seen, err := b.store.Exists(ctx, visitedKey(sid, link))
			if err != nil {
				return nil, err
			}
			if seen {
				continue
			}

			if err := b.store.Set(ctx, visitedKey(sid, link), visitedMark, b.opts.SessionTTL); err != nil {
				return nil, err
			}
			if err := b.setPath(ctx, sid, link, append(currentPath, link)); err != nil {
				return nil, err
			}

			next, err := json.Marshal(queueItem{Page: link, Depth: item.Depth + 1})
			if err != nil {
				return nil, fmt.Errorf("marshal frontier item: %w", err)
			}
			if err := b.queue.Push(ctx, queueKey(sid), next); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: no route from %q to %q within depth %d",
		domain.ErrPathNotFound, startPage, endPage, b.opts.MaxDepth)
}

func (b *BFS) getPath(ctx context.Context, sid, title string) ([]string, bool, error) {
	data, ok, err := b.store.Get(ctx, pathsKey(sid, title))
	if err != nil || !ok {
		return nil, false, err
	}
	var path []string
	if err := json.Unmarshal(data, &path); err != nil {
		slog.Warn("undecodable stored path", "sid", sid, "page", title, "error", err)
		return nil, false, nil
	}
	return path, true, nil
}

func (b *BFS) setPath(ctx context.Context, sid, title string, path []string) error {
	data, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal path for %q: %w", title, err)
	}
	return b.store.Set(ctx, pathsKey(sid, title), data, b.opts.SessionTTL)
}

// cleanup removes all session state. It runs on every exit with a fresh
// context because the search context may already be canceled. Failures
// are logged, never returned; the session TTL reclaims leftovers.
func (b *BFS) cleanup(sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.queue.Clear(ctx, queueKey(sid)); err != nil {
		slog.Error("session queue cleanup failed", "sid", sid, "error", err)
	}

	visited, err := b.store.ClearPattern(ctx, visitedPattern(sid))
	if err != nil {
		slog.Error("visited set cleanup failed", "sid", sid, "error", err)
	}
	paths, err := b.store.ClearPattern(ctx, pathsPattern(sid))
	if err != nil {
		slog.Error("path table cleanup failed", "sid", sid, "error", err)
	}

	slog.Debug("session cleaned up", "sid", sid, "visited_cleared", visited, "paths_cleared", paths)
}
