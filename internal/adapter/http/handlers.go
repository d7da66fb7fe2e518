package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/domain/task"
	"github.com/wikirace/wikipath/internal/port/kvstore"
	"github.com/wikirace/wikipath/internal/port/messagequeue"
	"github.com/wikirace/wikipath/internal/service"
	"github.com/wikirace/wikipath/internal/worker"
)

const defaultClearPattern = "wiki_links:*"

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Explore *service.ExploreService
	Records *worker.TaskStore
	Broker  messagequeue.Queue
	Store   kvstore.Store
}

type searchPayload struct {
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
	Algorithm string `json:"algorithm" validate:"omitempty,oneof=bfs bidirectional"`
	MaxDepth  int    `json:"max_depth" validate:"omitempty,min=1,max=10"`
}

type explorePayload struct {
	Start    string `json:"start" validate:"required"`
	MaxLinks int    `json:"max_links" validate:"omitempty,min=1,max=50"`
}

type clearPayload struct {
	Pattern string `json:"pattern"`
}

// GetPath submits a pathfinding task and returns a handle to poll.
func (h *Handlers) GetPath(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	payload, ok := readJSON[searchPayload](w, r)
	if !ok {
		return
	}

	startPage := strings.TrimSpace(payload.Start)
	endPage := strings.TrimSpace(payload.End)
	if startPage == "" || endPage == "" {
		writeError(w, http.StatusBadRequest, "start and end pages must be non-empty", codeValidationError)
		return
	}

	algorithm := search.Algorithm(payload.Algorithm)
	if algorithm == "" {
		algorithm = search.AlgorithmBFS
	}

	taskID := uuid.NewString()
	ctx := r.Context()

	if err := h.Records.Save(ctx, &task.Info{
		TaskID: taskID,
		Status: task.StatusPending,
	}); err != nil {
		writeDomainError(w, err)
		return
	}

	job, err := json.Marshal(task.Job{
		TaskID:    taskID,
		StartPage: startPage,
		EndPage:   endPage,
		Algorithm: algorithm,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Broker.Publish(ctx, messagequeue.SubjectSearchJobs, job); err != nil {
		slog.Error("job publish failed", "task_id", taskID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to submit task", codeInternalError)
		return
	}

	slog.Info("path request submitted", "task_id", taskID, "start", startPage, "end", endPage)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "IN_PROGRESS",
		"task_id":    taskID,
		"poll_url":   "/tasks/status/" + taskID,
		"start_page": startPage,
		"end_page":   endPage,
	})
}

// TaskStatus reports the state of a background task.
func (h *Handlers) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "task_id")

	info, ok, err := h.Records.Get(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok || info.Status == task.StatusPending {
		// An unknown id reads as pending; the record may simply not have
		// been written yet by a racing worker.
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  string(task.StatusPending),
			"task_id": taskID,
			"message": "Task is waiting to be processed",
		})
		return
	}

	switch info.Status {
	case task.StatusProgress, task.StatusRetry:
		body := map[string]any{
			"status":  "IN_PROGRESS",
			"task_id": taskID,
		}
		if info.Progress != nil {
			body["progress"] = info.Progress
		}
		if info.Status == task.StatusRetry {
			body["retry_count"] = info.RetryCount
		}
		writeJSON(w, http.StatusOK, body)

	case task.StatusSuccess:
		result := map[string]any{}
		if info.Result != nil {
			result["path"] = info.Result.Path
			result["length"] = info.Result.Length
			result["search_time"] = info.Result.SearchTime
			result["nodes_explored"] = info.Result.NodesExplored
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  string(task.StatusSuccess),
			"task_id": taskID,
			"result":  result,
		})

	case task.StatusFailure:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  string(task.StatusFailure),
			"task_id": taskID,
			"error":   info.Error,
			"code":    info.Code,
		})

	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  string(info.Status),
			"task_id": taskID,
		})
	}
}

// ExplorePage returns the star graph of a page's outgoing links.
func (h *Handlers) ExplorePage(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	payload, ok := readJSON[explorePayload](w, r)
	if !ok {
		return
	}

	result, err := h.Explore.Explore(r.Context(), search.ExploreRequest{
		StartPage: strings.TrimSpace(payload.Start),
		MaxLinks:  payload.MaxLinks,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CacheClear deletes cache entries matching the requested pattern.
func (h *Handlers) CacheClear(w http.ResponseWriter, r *http.Request) {
	pattern := defaultClearPattern
	if r.Body != nil && r.ContentLength > 0 {
		if !requireJSON(w, r) {
			return
		}
		payload, ok := readJSON[clearPayload](w, r)
		if !ok {
			return
		}
		if payload.Pattern != "" {
			pattern = payload.Pattern
		}
	}

	n, err := h.Store.ClearPattern(r.Context(), pattern)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "cache clear failed", codeCacheError)
		return
	}

	slog.Info("cache cleared", "pattern", pattern, "count", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "cleared " + strconv.Itoa(n) + " cache entries",
		"pattern": pattern,
	})
}

// Health reports per-dependency status: 200 healthy, 503 degraded.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	redisStatus := "healthy"
	if err := h.Store.Ping(ctx); err != nil {
		redisStatus = "unhealthy: " + err.Error()
	}

	cacheStatus := "healthy"
	if redisStatus == "healthy" {
		if err := h.cacheRoundTrip(ctx); err != nil {
			cacheStatus = "unhealthy: " + err.Error()
		}
	} else {
		cacheStatus = "unhealthy: store unreachable"
	}

	brokerStatus := "healthy"
	if !h.Broker.IsConnected() {
		brokerStatus = "unhealthy: disconnected"
	}

	status := "healthy"
	code := http.StatusOK
	if redisStatus != "healthy" || cacheStatus != "healthy" || brokerStatus != "healthy" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":        status,
		"redis_status":  redisStatus,
		"cache_status":  cacheStatus,
		"broker_status": brokerStatus,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) cacheRoundTrip(ctx context.Context) error {
	if err := h.Store.Set(ctx, "health_check", []byte("ok"), time.Minute); err != nil {
		return err
	}
	_, _, err := h.Store.Get(ctx, "health_check")
	return err
}
