// Package engine implements the store-backed breadth-first search over
// the live link graph.
package engine

import "context"

// LinkSource supplies the graph edges: outgoing article links discovered
// through the upstream API. Implemented by the wikipedia adapter.
type LinkSource interface {
	GetLinksBulk(ctx context.Context, titles []string) (map[string][]string, error)
	PageExists(ctx context.Context, title string) bool
}

// Result is the outcome of a pathfinding run.
type Result struct {
	Path          []string
	NodesExplored int
}

// Progress is the advisory payload passed to the progress callback.
// Callbacks must not mutate engine state.
type Progress struct {
	Status        string
	NodesExplored int
	CurrentDepth  int
	LastNode      string
	QueueSize     int64
	ElapsedSecs   float64
}

// ProgressFunc receives periodic progress updates during a search.
type ProgressFunc func(Progress)

// PathFinder is the common contract of the search strategies.
type PathFinder interface {
	FindShortestPath(ctx context.Context, startPage, endPage string) (*Result, error)
}
