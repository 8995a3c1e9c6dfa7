package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wishingwell/backend/models"
	"github.com/wishingwell/backend/repository"
)

// ListTopics handles GET /api/v1/topics
func (h *Handler) ListTopics(c *gin.Context) {
	_, limit := h.pagination(c)
	sort := c.DefaultQuery("sort", "popular")

	topics, total, err := h.repo.ListTopics(sort, limit)
	if err != nil {
		h.log.Errorw("Could not list topics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list topics"})
		return
	}

	items := make([]models.TopicResponse, 0, len(topics))
	for i := range topics {
		items = append(items, models.NewTopicResponse(&topics[i]))
	}
	c.JSON(http.StatusOK, models.TopicListResponse{Topics: items, Total: total})
}

// TrendingTopics handles GET /api/v1/topics/trending
func (h *Handler) TrendingTopics(c *gin.Context) {
	_, limit := h.pagination(c)

	topics, err := h.repo.TrendingTopics(limit)
	if err != nil {
		h.log.Errorw("Could not list trending topics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trending topics"})
		return
	}

	items := make([]models.TopicResponse, 0, len(topics))
	for i := range topics {
		items = append(items, models.NewTopicResponse(&topics[i]))
	}
	c.JSON(http.StatusOK, models.TopicListResponse{Topics: items, Total: int64(len(items))})
}

// GetTopic handles GET /api/v1/topics/:id
func (h *Handler) GetTopic(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid topic id"})
		return
	}

	topic, err := h.repo.GetTopic(id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	}
	if err != nil {
		h.log.Errorw("Could not get topic", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get topic"})
		return
	}

	_, limit := h.pagination(c)
	rows, err := h.repo.TopicWishes(id, limit)
	if err != nil {
		h.log.Errorw("Could not load topic wishes", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load topic wishes"})
		return
	}

	c.JSON(http.StatusOK, models.TopicDetailResponse{
		TopicResponse: models.NewTopicResponse(topic),
		Wishes:        topicWishItems(rows),
	})
}

// TopicWishes handles GET /api/v1/topics/:id/wishes
func (h *Handler) TopicWishes(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid topic id"})
		return
	}

	if _, err := h.repo.GetTopic(id); errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return
	} else if err != nil {
		h.log.Errorw("Could not get topic", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get topic"})
		return
	}

	_, limit := h.pagination(c)
	rows, err := h.repo.TopicWishes(id, limit)
	if err != nil {
		h.log.Errorw("Could not load topic wishes", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load topic wishes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wishes": topicWishItems(rows)})
}

func topicWishItems(rows []repository.TopicWishRow) []models.WishInTopicResponse {
	items := make([]models.WishInTopicResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.WishInTopicResponse{
			ID:          row.ID.String(),
			Content:     row.Content,
			Probability: row.Probability,
			CreatedAt:   row.CreatedAt,
		})
	}
	return items
}
