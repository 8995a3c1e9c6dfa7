package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wishingwell/backend/models"
	"github.com/wishingwell/backend/pipeline"
	"github.com/wishingwell/backend/repository"
)

const historyLimit = 20

// TriggerTraining handles POST /api/v1/admin/model/train. Admission runs
// synchronously so conflicts surface in the response; the pipeline body runs
// in the background and clients poll the status endpoint.
func (h *Handler) TriggerTraining(c *gin.Context) {
	run, err := h.trainer.Admit(c.Request.Context())
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A training run is already in progress"})
		return
	case errors.Is(err, pipeline.ErrInsufficientWishes):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Not enough unassigned wishes to train",
			"details": err.Error(),
		})
		return
	case err != nil:
		h.log.Errorw("Training admission failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start training"})
		return
	}

	go func() {
		if err := h.trainer.Execute(context.Background(), run); err != nil {
			h.log.Errorw("Background training run failed", "version", run.Version, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Training started",
		"version": run.Version,
		"wishes":  run.WishesCount,
	})
}

// TrainingStatus handles GET /api/v1/admin/model/status
func (h *Handler) TrainingStatus(c *gin.Context) {
	run, err := h.repo.LatestRun()
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No training runs yet"})
		return
	}
	if err != nil {
		h.log.Errorw("Could not load latest run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load training status"})
		return
	}
	c.JSON(http.StatusOK, models.NewTrainingStatusResponse(run))
}

// TrainingHistory handles GET /api/v1/admin/model/history
func (h *Handler) TrainingHistory(c *gin.Context) {
	runs, total, err := h.repo.ListRuns(historyLimit)
	if err != nil {
		h.log.Errorw("Could not load run history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load training history"})
		return
	}
	history := make([]models.TrainingStatusResponse, 0, len(runs))
	for i := range runs {
		history = append(history, models.NewTrainingStatusResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, models.TrainingHistoryResponse{History: history, Total: total})
}

// ResetStuckRuns handles POST /api/v1/admin/model/reset-stuck
func (h *Handler) ResetStuckRuns(c *gin.Context) {
	count, err := h.trainer.ResetStuckRuns()
	if err != nil {
		h.log.Errorw("Could not reset stuck runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset stuck runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stuck runs reset", "count": count})
}

// Stats handles GET /api/v1/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.log.Errorw("Could not compute stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	resp := models.SystemStatsResponse{
		TotalWishes:      stats.TotalWishes,
		UnassignedWishes: stats.UnassignedWishes,
		TotalTopics:      stats.TotalTopics,
		SchedulerEnabled: h.sched.Running(),
	}
	if run, err := h.repo.LatestRun(); err == nil {
		latest := models.NewTrainingStatusResponse(run)
		resp.LatestTraining = &latest
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.log.Warnw("Could not load latest run for stats", "error", err)
	}

	c.JSON(http.StatusOK, resp)
}

// StartScheduler handles POST /api/v1/admin/scheduler/start
func (h *Handler) StartScheduler(c *gin.Context) {
	if !h.sched.Start() {
		c.JSON(http.StatusConflict, gin.H{"error": "Scheduler already running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler started"})
}

// StopScheduler handles POST /api/v1/admin/scheduler/stop
func (h *Handler) StopScheduler(c *gin.Context) {
	if !h.sched.Stop() {
		c.JSON(http.StatusConflict, gin.H{"error": "Scheduler not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler stopped"})
}
