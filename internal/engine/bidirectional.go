package engine

import "context"

// Bidirectional is the two-frontier search strategy. A full implementation
// grows a frontier from each endpoint, always expanding the smaller one,
// and joins the forward and reverse chains at the first shared visited
// vertex. Until that lands it delegates to the unidirectional engine,
// which satisfies the same contract.
type Bidirectional struct {
	inner *BFS
}

// NewBidirectional creates the bidirectional strategy backed by the given
// unidirectional engine.
func NewBidirectional(inner *BFS) *Bidirectional {
	return &Bidirectional{inner: inner}
}

// FindShortestPath implements PathFinder.
func (b *Bidirectional) FindShortestPath(ctx context.Context, startPage, endPage string) (*Result, error) {
	return b.inner.FindShortestPath(ctx, startPage, endPage)
}
