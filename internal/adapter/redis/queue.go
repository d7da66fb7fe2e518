package redis

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// Queue implements the workqueue.Queue port over Redis lists.
// Push appends with RPUSH and Pop removes with LPOP, giving FIFO order.
type Queue struct {
	c *Client
}

// NewQueue returns the work queue view of the client.
func NewQueue(c *Client) *Queue {
	return &Queue{c: c}
}

// Push appends item at the tail.
func (q *Queue) Push(ctx context.Context, queue string, item []byte) error {
	if err := q.c.rdb.RPush(ctx, queue, item).Err(); err != nil {
		return storeErr("rpush", queue, err)
	}
	return nil
}

// PushFront inserts item at the head.
func (q *Queue) PushFront(ctx context.Context, queue string, item []byte) error {
	if err := q.c.rdb.LPush(ctx, queue, item).Err(); err != nil {
		return storeErr("lpush", queue, err)
	}
	return nil
}

// Pop removes and returns the head item, or nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context, queue string) ([]byte, error) {
	item, err := q.c.rdb.LPop(ctx, queue).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storeErr("lpop", queue, err)
	}
	return item, nil
}

// PushBatch appends items at the tail as one contiguous block. A single
// RPUSH carries the whole batch, so concurrent pushers cannot interleave
// inside it.
func (q *Queue) PushBatch(ctx context.Context, queue string, items [][]byte) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]interface{}, len(items))
	for i, item := range items {
		args[i] = item
	}
	if err := q.c.rdb.RPush(ctx, queue, args...).Err(); err != nil {
		return storeErr("rpush", queue, err)
	}
	return nil
}

// PopBatch removes and returns up to n head items, stopping when the
// queue drains.
func (q *Queue) PopBatch(ctx context.Context, queue string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	items := make([][]byte, 0, n)
	for range n {
		item, err := q.Pop(ctx, queue)
		if err != nil {
			return items, err
		}
		if item == nil {
			break
		}
		items = append(items, item)
	}
	return items, nil
}

// Length returns the number of items in the queue.
func (q *Queue) Length(ctx context.Context, queue string) (int64, error) {
	n, err := q.c.rdb.LLen(ctx, queue).Result()
	if err != nil {
		return 0, storeErr("llen", queue, err)
	}
	return n, nil
}

// Peek returns the item at index without removing it.
func (q *Queue) Peek(ctx context.Context, queue string, index int64) ([]byte, error) {
	item, err := q.c.rdb.LIndex(ctx, queue, index).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storeErr("lindex", queue, err)
	}
	return item, nil
}

// Clear removes all items from the queue.
func (q *Queue) Clear(ctx context.Context, queue string) error {
	if err := q.c.rdb.Del(ctx, queue).Err(); err != nil {
		return storeErr("del", queue, err)
	}
	return nil
}
