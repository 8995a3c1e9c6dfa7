package models

import (
	"encoding/json"
	"time"
)

// WishCreateRequest is the submission payload.
type WishCreateRequest struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
}

// WishResponse is the public view of a wish.
type WishResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TopicID   *int      `json:"topic_id"`
}

func NewWishResponse(w *Wish) WishResponse {
	return WishResponse{
		ID:        w.ID.String(),
		Content:   w.Content,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		TopicID:   w.TopicID,
	}
}

// WishListResponse is a paginated wish listing.
type WishListResponse struct {
	Wishes  []WishResponse `json:"wishes"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

// WishDetailResponse adds the topic name and related wishes from the same
// topic.
type WishDetailResponse struct {
	WishResponse
	TopicName     *string        `json:"topic_name"`
	RelatedWishes []WishResponse `json:"related_wishes"`
}

// TopicResponse is the public view of a topic.
type TopicResponse struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	WishCount   int       `json:"wish_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewTopicResponse(t *Topic) TopicResponse {
	return TopicResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		WishCount:   t.WishCount,
		CreatedAt:   t.CreatedAt,
	}
}

// TopicListResponse lists topics with the overall count.
type TopicListResponse struct {
	Topics []TopicResponse `json:"topics"`
	Total  int64           `json:"total"`
}

// WishInTopicResponse is a wish as seen through a topic, with its assignment
// probability.
type WishInTopicResponse struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Probability float64   `json:"probability"`
	CreatedAt   time.Time `json:"created_at"`
}

// TopicDetailResponse is a topic with its member wishes ordered by
// probability.
type TopicDetailResponse struct {
	TopicResponse
	Wishes []WishInTopicResponse `json:"wishes"`
}

// TrainingStatusResponse is the public view of a training run.
type TrainingStatusResponse struct {
	Version       int            `json:"version"`
	Status        string         `json:"status"`
	WishesCount   int            `json:"wishes_count"`
	TopicsCreated int            `json:"topics_created"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at"`
	Configuration map[string]any `json:"configuration"`
}

func NewTrainingStatusResponse(run *TrainingRun) TrainingStatusResponse {
	resp := TrainingStatusResponse{
		Version:       run.Version,
		Status:        run.Status,
		WishesCount:   run.WishesCount,
		TopicsCreated: run.TopicsCreated,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
	}
	if run.Configuration != "" {
		var cfg map[string]any
		if err := json.Unmarshal([]byte(run.Configuration), &cfg); err == nil {
			resp.Configuration = cfg
		}
	}
	return resp
}

// TrainingHistoryResponse lists past training runs.
type TrainingHistoryResponse struct {
	History []TrainingStatusResponse `json:"history"`
	Total   int64                    `json:"total"`
}

// SystemStatsResponse is the admin overview.
type SystemStatsResponse struct {
	TotalWishes      int64                   `json:"total_wishes"`
	UnassignedWishes int64                   `json:"unassigned_wishes"`
	TotalTopics      int64                   `json:"total_topics"`
	LatestTraining   *TrainingStatusResponse `json:"latest_training"`
	SchedulerEnabled bool                    `json:"scheduler_enabled"`
}
