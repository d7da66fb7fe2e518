package worker

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wikirace/wikipath/internal/port/kvstore"
)

const (
	sessionReapPattern = "bfs_*"
	livenessTTL        = 10 * time.Minute
)

// Housekeeper runs the periodic maintenance tasks: hourly reaping of
// orphaned search session state and a five-minute self-health check that
// records the worker as live.
type Housekeeper struct {
	store    kvstore.Store
	cron     *cron.Cron
	workerID string
}

// NewHousekeeper creates the maintenance scheduler for this worker.
func NewHousekeeper(store kvstore.Store) *Housekeeper {
	host, _ := os.Hostname()
	return &Housekeeper{
		store:    store,
		cron:     cron.New(),
		workerID: host + "-" + strconv.Itoa(os.Getpid()),
	}
}

// Start registers and starts the schedules.
func (h *Housekeeper) Start() error {
	if _, err := h.cron.AddFunc("0 * * * *", h.reapSessions); err != nil {
		return err
	}
	if _, err := h.cron.AddFunc("*/5 * * * *", h.healthCheck); err != nil {
		return err
	}
	h.cron.Start()
	slog.Info("housekeeping started", "worker_id", h.workerID)
	return nil
}

// Stop halts the schedules and waits for running jobs.
func (h *Housekeeper) Stop() {
	ctx := h.cron.Stop()
	<-ctx.Done()
}

// reapSessions deletes every key under the bfs_* prefix. It does not tell
// orphaned sessions apart from searches still running, whose state is
// removed as well. TTLs reclaim orphaned state even without this task.
func (h *Housekeeper) reapSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := h.store.ClearPattern(ctx, sessionReapPattern)
	if err != nil {
		slog.Error("session reap failed", "pattern", sessionReapPattern, "error", err)
		return
	}
	slog.Info("session reap completed", "pattern", sessionReapPattern, "cleared", n)
}

// healthCheck pings the store and performs a set/get round trip, then
// refreshes this worker's liveness marker.
func (h *Housekeeper) healthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("health check ping failed", "worker_id", h.workerID, "error", err)
		return
	}

	probe := "health_check:" + h.workerID
	if err := h.store.Set(ctx, probe, []byte("ok"), time.Minute); err != nil {
		slog.Error("health check set failed", "worker_id", h.workerID, "error", err)
		return
	}
	val, ok, err := h.store.Get(ctx, probe)
	if err != nil || !ok || string(val) != "ok" {
		slog.Error("health check round trip failed", "worker_id", h.workerID, "error", err)
		return
	}
	_ = h.store.Delete(ctx, probe)

	if err := h.store.Set(ctx, "worker:alive:"+h.workerID, []byte(time.Now().UTC().Format(time.RFC3339)), livenessTTL); err != nil {
		slog.Error("liveness marker write failed", "worker_id", h.workerID, "error", err)
		return
	}
	slog.Debug("health check passed", "worker_id", h.workerID)
}
