package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wishingwell/backend/config"
	"github.com/wishingwell/backend/models"
	"github.com/wishingwell/backend/repository"
)

// ModerationGate decides whether submitted content is acceptable.
type ModerationGate interface {
	Check(ctx context.Context, content string) (bool, string)
	Model() string
}

// Trainer is the admission/execution surface of the training pipeline.
type Trainer interface {
	Admit(ctx context.Context) (*models.TrainingRun, error)
	Execute(ctx context.Context, run *models.TrainingRun) error
	ResetStuckRuns() (int64, error)
}

// SchedulerControl starts and stops the periodic trigger.
type SchedulerControl interface {
	Start() bool
	Stop() bool
	Running() bool
}

// Handler handles HTTP requests
type Handler struct {
	repo     *repository.Repository
	gate     ModerationGate
	trainer  Trainer
	sched    SchedulerControl
	settings config.Settings
	log      *zap.SugaredLogger
}

// NewHandler creates a new handler instance
func NewHandler(repo *repository.Repository, gate ModerationGate, trainer Trainer, sched SchedulerControl, settings config.Settings, log *zap.SugaredLogger) *Handler {
	return &Handler{
		repo:     repo,
		gate:     gate,
		trainer:  trainer,
		sched:    sched,
		settings: settings,
		log:      log,
	}
}

// RegisterRoutes wires all endpoints onto the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		wishes := api.Group("/wishes")
		{
			wishes.POST("", h.CreateWish)
			wishes.GET("", h.ListWishes)
			wishes.GET("/:id", h.GetWish)
			wishes.DELETE("/:id", h.DeleteWish)
		}

		topics := api.Group("/topics")
		{
			topics.GET("", h.ListTopics)
			topics.GET("/trending", h.TrendingTopics)
			topics.GET("/:id", h.GetTopic)
			topics.GET("/:id/wishes", h.TopicWishes)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/model/train", h.TriggerTraining)
			admin.GET("/model/status", h.TrainingStatus)
			admin.GET("/model/history", h.TrainingHistory)
			admin.POST("/model/reset-stuck", h.ResetStuckRuns)
			admin.GET("/stats", h.Stats)
			admin.POST("/scheduler/start", h.StartScheduler)
			admin.POST("/scheduler/stop", h.StopScheduler)
		}
	}
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// pagination reads page/limit query params with configured defaults and cap.
func (h *Handler) pagination(c *gin.Context) (page, limit int) {
	page = queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = queryInt(c, "limit", h.settings.DefaultPageSize)
	if limit < 1 {
		limit = h.settings.DefaultPageSize
	}
	if limit > h.settings.MaxPageSize {
		limit = h.settings.MaxPageSize
	}
	return page, limit
}
