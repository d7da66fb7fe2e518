// Package worker implements the background task runtime: job consumption,
// retry classification, progress reporting, and periodic housekeeping.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wikirace/wikipath/internal/domain/task"
	"github.com/wikirace/wikipath/internal/port/kvstore"
)

const taskKeyPrefix = "task:"

// TaskStore persists task records in the KV store. Records expire after
// the configured TTL so abandoned handles reclaim themselves.
type TaskStore struct {
	store kvstore.Store
	ttl   time.Duration
}

// NewTaskStore creates a task record store.
func NewTaskStore(store kvstore.Store, ttl time.Duration) *TaskStore {
	return &TaskStore{store: store, ttl: ttl}
}

// Save writes the record, stamping UpdatedAt.
func (s *TaskStore) Save(ctx context.Context, info *task.Info) error {
	info.UpdatedAt = time.Now().UTC()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = info.UpdatedAt
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", info.TaskID, err)
	}
	return s.store.Set(ctx, taskKeyPrefix+info.TaskID, data, s.ttl)
}

// Get loads a record by task id, with ok=false when it is unknown or
// already expired.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*task.Info, bool, error) {
	data, ok, err := s.store.Get(ctx, taskKeyPrefix+taskID)
	if err != nil || !ok {
		return nil, false, err
	}

	var info task.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, false, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &info, true, nil
}
