package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/wikirace/wikipath/internal/config"
	"github.com/wikirace/wikipath/internal/domain"
	"github.com/wikirace/wikipath/internal/domain/search"
	"github.com/wikirace/wikipath/internal/domain/task"
	"github.com/wikirace/wikipath/internal/engine"
	"github.com/wikirace/wikipath/internal/port/messagequeue"
	"github.com/wikirace/wikipath/internal/service"
)

// Runner consumes search jobs from the broker and drives the search
// service. One runner handles one job at a time; parallelism comes from
// running more worker processes.
type Runner struct {
	broker  messagequeue.Queue
	records *TaskStore
	factory *service.Factory
	cfg     config.Tasks
}

// NewRunner creates a worker runner.
func NewRunner(broker messagequeue.Queue, records *TaskStore, factory *service.Factory, cfg config.Tasks) *Runner {
	return &Runner{broker: broker, records: records, factory: factory, cfg: cfg}
}

// Start subscribes to the search job subject. Messages are acknowledged
// only after the handler returns, so a worker crash causes redelivery.
// The broker stops redelivering after the initial attempt plus the
// configured retries.
func (r *Runner) Start(ctx context.Context) (cancel func(), err error) {
	return r.broker.Subscribe(ctx, messagequeue.SubjectSearchJobs, messagequeue.SubscribeOptions{
		MaxDeliver: r.cfg.MaxRetries + 1,
		AckWait:    r.cfg.HardTimeLimit + time.Minute,
		RetryDelay: r.cfg.RetryBackoff,
		MaxPending: 1,
	}, r.handle)
}

func (r *Runner) handle(ctx context.Context, _ string, data []byte, attempt int) messagequeue.Decision {
	var job task.Job
	if err := json.Unmarshal(data, &job); err != nil {
		slog.Error("dropping undecodable job", "error", err)
		return messagequeue.Term
	}

	slog.Info("task started",
		"task_id", job.TaskID,
		"start", job.StartPage,
		"end", job.EndPage,
		"algorithm", job.Algorithm,
		"attempt", attempt,
	)

	result, err := r.execute(ctx, &job)
	if err == nil {
		r.saveRecord(ctx, &task.Info{
			TaskID: job.TaskID,
			Status: task.StatusSuccess,
			Result: result,
		})
		slog.Info("task succeeded", "task_id", job.TaskID, "length", result.Length)
		return messagequeue.Ack
	}

	return r.classify(ctx, &job, err, attempt)
}

// execute runs one search attempt under the soft and hard time limits.
func (r *Runner) execute(ctx context.Context, job *task.Job) (*search.PathResult, error) {
	hardCtx, cancelHard := context.WithTimeout(ctx, r.cfg.HardTimeLimit)
	defer cancelHard()
	softCtx, cancelSoft := context.WithTimeout(hardCtx, r.cfg.SoftTimeLimit)
	defer cancelSoft()

	r.saveRecord(ctx, &task.Info{
		TaskID: job.TaskID,
		Status: task.StatusProgress,
		Progress: &task.Progress{
			Current: 0, Total: 100,
			Status:    "Initializing pathfinding...",
			StartPage: job.StartPage,
			EndPage:   job.EndPage,
		},
	})

	onProgress := func(p engine.Progress) {
		r.saveRecord(ctx, &task.Info{
			TaskID: job.TaskID,
			Status: task.StatusProgress,
			Progress: &task.Progress{
				Current: 50, Total: 100,
				Status:    p.Status,
				StartPage: job.StartPage,
				EndPage:   job.EndPage,
				SearchStats: &task.SearchStats{
					NodesExplored: p.NodesExplored,
					CurrentDepth:  p.CurrentDepth,
					LastNode:      p.LastNode,
					QueueSize:     p.QueueSize,
				},
				ElapsedSecs: p.ElapsedSecs,
			},
		})
	}

	svc, err := r.factory.SearchService(ctx, job.Algorithm, onProgress)
	if err != nil {
		return nil, err
	}

	r.checkpoint(ctx, job, 10, "Validating pages...")
	r.checkpoint(ctx, job, 25, "Starting pathfinding search...")

	result, err := svc.FindPath(softCtx, search.Request{
		StartPage: job.StartPage,
		EndPage:   job.EndPage,
		Algorithm: job.Algorithm,
	})
	if err != nil {
		// Distinguish the graceful soft stop from the hard abort.
		if errors.Is(err, context.DeadlineExceeded) && hardCtx.Err() == nil {
			return nil, errSoftTimeout
		}
		return nil, err
	}

	r.checkpoint(ctx, job, 90, "Finalizing results...")
	return result, nil
}

// errSoftTimeout marks an attempt that exceeded the soft limit and exited
// at the next safe point. Terminal, not retryable.
var errSoftTimeout = errors.New("soft time limit exceeded")

// classify maps an attempt failure onto the task state machine.
func (r *Runner) classify(ctx context.Context, job *task.Job, err error, attempt int) messagequeue.Decision {
	switch {
	case errors.Is(err, domain.ErrInvalidPage):
		return r.fail(ctx, job, err, task.CodeInvalidPage)

	case errors.Is(err, domain.ErrPathNotFound):
		return r.fail(ctx, job, err, task.CodePathNotFound)

	case errors.Is(err, errSoftTimeout):
		return r.fail(ctx, job, err, task.CodeSoftTimeout)

	case isRetryable(err):
		if attempt > r.cfg.MaxRetries {
			slog.Error("task exhausted retries", "task_id", job.TaskID, "attempts", attempt, "error", err)
			return r.fail(ctx, job, err, task.CodeMaxRetriesExceeded)
		}
		slog.Warn("task will retry",
			"task_id", job.TaskID,
			"attempt", attempt,
			"retry_in", r.cfg.RetryBackoff,
			"error", err,
		)
		r.saveRecord(ctx, &task.Info{
			TaskID:     job.TaskID,
			Status:     task.StatusRetry,
			Error:      err.Error(),
			RetryCount: attempt,
			Progress: &task.Progress{
				Status:    "Retrying: " + err.Error(),
				StartPage: job.StartPage,
				EndPage:   job.EndPage,
			},
		})
		return messagequeue.Retry

	default:
		slog.Error("task failed unexpectedly", "task_id", job.TaskID, "error", err)
		return r.fail(ctx, job, err, task.CodeInternalError)
	}
}

// isRetryable covers transient kinds: upstream failures, store outages,
// and the hard-timeout abort.
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamAPI) ||
		errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) fail(ctx context.Context, job *task.Job, err error, code string) messagequeue.Decision {
	slog.Warn("task failed", "task_id", job.TaskID, "code", code, "error", err)
	r.saveRecord(ctx, &task.Info{
		TaskID: job.TaskID,
		Status: task.StatusFailure,
		Error:  err.Error(),
		Code:   code,
	})
	return messagequeue.Ack
}

func (r *Runner) checkpoint(ctx context.Context, job *task.Job, current int, status string) {
	r.saveRecord(ctx, &task.Info{
		TaskID: job.TaskID,
		Status: task.StatusProgress,
		Progress: &task.Progress{
			Current: current, Total: 100,
			Status:    status,
			StartPage: job.StartPage,
			EndPage:   job.EndPage,
		},
	})
}

// saveRecord persists a state transition. Record writes are advisory next
// to the broker's delivery state; a failed write must not fail the task.
func (r *Runner) saveRecord(ctx context.Context, info *task.Info) {
	if err := r.records.Save(ctx, info); err != nil {
		slog.Error("task record write failed", "task_id", info.TaskID, "error", err)
	}
}
