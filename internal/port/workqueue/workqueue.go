// Package workqueue defines the port interface for FIFO work queues held
// in the shared key/value store.
package workqueue

import "context"

// Queue is the port interface for named FIFO queues. Items are opaque
// byte strings; JSON encoding lives at the caller boundary.
//
// Guarantees: FIFO order per queue; PushBatch is observable as one
// contiguous block with no interleaving from concurrent single pushes on
// the same queue. Backend failures are wrapped as domain.ErrStoreUnavailable.
type Queue interface {
	// Push appends item at the tail.
	Push(ctx context.Context, queue string, item []byte) error

	// PushFront inserts item at the head.
	PushFront(ctx context.Context, queue string, item []byte) error

	// Pop removes and returns the head item, or nil when the queue is empty.
	Pop(ctx context.Context, queue string) ([]byte, error)

	// PushBatch appends items at the tail as one contiguous block.
	PushBatch(ctx context.Context, queue string, items [][]byte) error

	// PopBatch removes and returns up to n head items, stopping early
	// when the queue drains.
	PopBatch(ctx context.Context, queue string, n int) ([][]byte, error)

	// Length returns the number of items in the queue.
	Length(ctx context.Context, queue string) (int64, error)

	// Peek returns the item at index without removing it, or nil when
	// the index is out of range.
	Peek(ctx context.Context, queue string, index int64) ([]byte, error)

	// Clear removes all items from the queue.
	Clear(ctx context.Context, queue string) error
}
