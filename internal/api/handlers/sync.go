package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/wonny/futsync/internal/scheduler"
	"github.com/wonny/futsync/internal/syncer"
	"github.com/wonny/futsync/pkg/logger"
)

// cacheInvalidator drops cached read-path payloads after a write.
type cacheInvalidator interface {
	InvalidatePrefix(ctx context.Context, keyPrefix string) error
}

// readCachePrefixes are the key families the read endpoints populate.
// A completed sync makes every one of them stale.
var readCachePrefixes = []string{"exchanges", "products", "quotes", "mains"}

// SyncHandler triggers synchronization runs. Triggers are asynchronous:
// the run proceeds in the background and reports through the progress
// hub; the response only acknowledges the start.
// ⭐ SSOT: 동기화 트리거 API는 이 구조체에서만
type SyncHandler struct {
	orchestrator *syncer.Orchestrator
	sched        *scheduler.Scheduler
	hub          *ProgressHub
	cache        cacheInvalidator
	logger       *logger.Logger
}

// NewSyncHandler creates a new sync handler. sched and cache may be nil
// when the process runs without the cron scheduler or the redis cache.
func NewSyncHandler(o *syncer.Orchestrator, sched *scheduler.Scheduler, hub *ProgressHub, cache cacheInvalidator, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		orchestrator: o,
		sched:        sched,
		hub:          hub,
		cache:        cache,
		logger:       log,
	}
}

// trigger starts fn in the background. An already-running sync yields
// 409; the overlap guard inside the orchestrator also protects against
// the request race this pre-check cannot see.
func (h *SyncHandler) trigger(w http.ResponseWriter, operation string, fn func(ctx context.Context, p syncer.ProgressFunc) error) {
	if h.orchestrator.Running() {
		respondError(w, http.StatusConflict, "a sync run is already in progress")
		return
	}

	go func() {
		ctx := context.Background()
		err := fn(ctx, h.hub.Broadcast)
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress):
			h.logger.WithField("operation", operation).Warn("Sync trigger lost the overlap race")
		case err != nil:
			h.logger.WithError(err).WithField("operation", operation).Error("Sync run failed")
		default:
			h.logger.WithField("operation", operation).Info("Sync run finished")
			h.invalidateReadCache(ctx)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":    "started",
		"operation": operation,
	})
}

// invalidateReadCache drops every read-path cache family so the next
// request sees the rows the run just wrote instead of a pre-sync payload.
func (h *SyncHandler) invalidateReadCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	for _, prefix := range readCachePrefixes {
		if err := h.cache.InvalidatePrefix(ctx, prefix); err != nil {
			h.logger.WithError(err).WithField("prefix", prefix).Warn("Cache invalidation failed")
		}
	}
}

// RefreshMaster replaces the contract master
// POST /api/sync/master
func (h *SyncHandler) RefreshMaster(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, "master", func(ctx context.Context, p syncer.ProgressFunc) error {
		_, err := h.orchestrator.RefreshMaster(ctx, p)
		return err
	})
}

// SyncQuotes syncs the missing daily bars
// POST /api/sync/quotes
func (h *SyncHandler) SyncQuotes(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, "quotes", func(ctx context.Context, p syncer.ProgressFunc) error {
		_, err := h.orchestrator.SyncQuotes(ctx, p)
		return err
	})
}

// RecomputeMainContracts reselects the main contracts
// POST /api/sync/main-contracts
func (h *SyncHandler) RecomputeMainContracts(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, "main_contracts", func(ctx context.Context, p syncer.ProgressFunc) error {
		_, err := h.orchestrator.RecomputeMainContracts(ctx, p)
		return err
	})
}

// SyncHistory backfills the main-contract history
// POST /api/sync/history?days=30
func (h *SyncHandler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			respondError(w, http.StatusBadRequest, "days must be an integer in 1..365")
			return
		}
		days = n
	}

	h.trigger(w, "history", func(ctx context.Context, p syncer.ProgressFunc) error {
		_, err := h.orchestrator.SyncMainContractHistory(ctx, days, p)
		return err
	})
}

// RunDaily runs the full daily sequence
// POST /api/sync/all
func (h *SyncHandler) RunDaily(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, "all", func(ctx context.Context, p syncer.ProgressFunc) error {
		_, err := h.orchestrator.RunDaily(ctx, p)
		return err
	})
}

// Status reports whether a run is active and the scheduler job stats
// GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"running": h.orchestrator.Running(),
	}
	if h.sched != nil {
		status["jobs"] = h.sched.Stats()
	}
	respondJSON(w, http.StatusOK, status)
}
