package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wishingwell/backend/models"
	"github.com/wishingwell/backend/repository"
)

const relatedWishLimit = 5

// CreateWish handles POST /api/v1/wishes
func (h *Handler) CreateWish(c *gin.Context) {
	var req models.WishCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	approved, reason := h.gate.Check(c.Request.Context(), req.Content)
	if !approved {
		if _, err := h.repo.CreateRejectedWish(req.Content, reason, h.gate.Model()); err != nil {
			h.log.Errorw("Could not record rejected wish", "error", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Wish rejected by moderation",
			"reason": reason,
		})
		return
	}

	wish, err := h.repo.CreateWish(req.Content)
	if err != nil {
		h.log.Errorw("Could not create wish", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create wish"})
		return
	}

	c.JSON(http.StatusCreated, models.NewWishResponse(wish))
}

// ListWishes handles GET /api/v1/wishes
func (h *Handler) ListWishes(c *gin.Context) {
	page, limit := h.pagination(c)
	sort := c.DefaultQuery("sort", "recent")

	wishes, total, err := h.repo.ListWishes(page, limit, sort)
	if err != nil {
		h.log.Errorw("Could not list wishes", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list wishes"})
		return
	}

	items := make([]models.WishResponse, 0, len(wishes))
	for i := range wishes {
		items = append(items, models.NewWishResponse(&wishes[i]))
	}
	c.JSON(http.StatusOK, models.WishListResponse{
		Wishes:  items,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: int64(page*limit) < total,
	})
}

// GetWish handles GET /api/v1/wishes/:id
func (h *Handler) GetWish(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wish id"})
		return
	}

	wish, err := h.repo.GetWish(id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wish not found"})
		return
	}
	if err != nil {
		h.log.Errorw("Could not get wish", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get wish"})
		return
	}

	detail := models.WishDetailResponse{
		WishResponse:  models.NewWishResponse(wish),
		RelatedWishes: []models.WishResponse{},
	}
	if wish.TopicID != nil {
		if topic, err := h.repo.GetTopic(*wish.TopicID); err == nil {
			detail.TopicName = &topic.Name
		}
		related, err := h.repo.RelatedWishes(*wish.TopicID, wish.ID, relatedWishLimit)
		if err != nil {
			h.log.Warnw("Could not load related wishes", "id", id, "error", err)
		}
		for i := range related {
			detail.RelatedWishes = append(detail.RelatedWishes, models.NewWishResponse(&related[i]))
		}
	}

	c.JSON(http.StatusOK, detail)
}

// DeleteWish handles DELETE /api/v1/wishes/:id
func (h *Handler) DeleteWish(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wish id"})
		return
	}

	err = h.repo.SoftDeleteWish(id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wish not found"})
		return
	}
	if err != nil {
		h.log.Errorw("Could not delete wish", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete wish"})
		return
	}

	c.Status(http.StatusNoContent)
}
