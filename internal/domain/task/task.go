// Package task defines the background task entity and its state machine.
package task

import (
	"time"

	"github.com/wikirace/wikipath/internal/domain/search"
)

// Status represents the current state of a background task.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusProgress Status = "PROGRESS"
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
	StatusRetry    Status = "RETRY"
)

// Failure codes persisted on terminal FAILURE records.
const (
	CodeInvalidPage        = "INVALID_PAGE"
	CodePathNotFound       = "PATH_NOT_FOUND"
	CodeSoftTimeout        = "SOFT_TIMEOUT"
	CodeMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Progress carries coarse checkpoints and fine-grained search stats.
type Progress struct {
	Current     int          `json:"current"`
	Total       int          `json:"total"`
	Status      string       `json:"status"`
	StartPage   string       `json:"start_page,omitempty"`
	EndPage     string       `json:"end_page,omitempty"`
	SearchStats *SearchStats `json:"search_stats,omitempty"`
	ElapsedSecs float64      `json:"search_time_elapsed,omitempty"`
}

// SearchStats mirrors the BFS engine's progress callback payload.
type SearchStats struct {
	NodesExplored int    `json:"nodes_explored"`
	CurrentDepth  int    `json:"current_depth"`
	LastNode      string `json:"last_node"`
	QueueSize     int64  `json:"queue_size"`
}

// Info is the persisted record for a background task.
type Info struct {
	TaskID     string             `json:"task_id"`
	Status     Status             `json:"status"`
	Progress   *Progress          `json:"progress,omitempty"`
	Result     *search.PathResult `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	Code       string             `json:"code,omitempty"`
	RetryCount int                `json:"retry_count,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Job is the broker payload dispatched to workers.
type Job struct {
	TaskID    string           `json:"task_id"`
	StartPage string           `json:"start_page"`
	EndPage   string           `json:"end_page"`
	Algorithm search.Algorithm `json:"algorithm"`
}
