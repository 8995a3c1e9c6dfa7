package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Training run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Wish is a user-submitted wish. Wishes are never hard-deleted; topic_id
// stays null until exactly one completed training run assigns it.
type Wish struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Content   string    `gorm:"type:text;not null"`
	TopicID   *int      `gorm:"index"`
	IsDeleted bool      `gorm:"index;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Wish) TableName() string { return "wishes" }

func (w *Wish) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Topic is a discovered cluster of semantically similar wishes. Topics are
// created once per cluster by a training run and never updated afterwards.
type Topic struct {
	ID             int    `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"size:255;not null"`
	Description    string `gorm:"type:text"`
	WishCount      int    `gorm:"not null;default:0"`
	EmbeddingModel string `gorm:"size:100"`
	TrainingRunID  int    `gorm:"index"`
	CreatedAt      time.Time
}

func (Topic) TableName() string { return "topics" }

// WishTopicAssignment records the probability mass a wish carries on a topic.
// At most one row per wish is primary and that row's topic must match the
// wish's topic_id.
type WishTopicAssignment struct {
	TopicID     int       `gorm:"primaryKey"`
	WishID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Probability float64   `gorm:"type:decimal(5,4);not null"`
	IsPrimary   bool      `gorm:"default:false"`

	Topic Topic `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE"`
	Wish  Wish  `gorm:"foreignKey:WishID;constraint:OnDelete:CASCADE"`
}

func (WishTopicAssignment) TableName() string { return "topic_wishes" }

// TrainingRun tracks one execution of the batch assignment pipeline. The
// committed running row is the durable marker other triggers check against.
type TrainingRun struct {
	ID            int    `gorm:"primaryKey;autoIncrement"`
	Version       int    `gorm:"not null;index"`
	Status        string `gorm:"size:50;not null;index"`
	WishesCount   int
	TopicsCreated int
	StartedAt     time.Time
	CompletedAt   *time.Time
	Configuration string `gorm:"type:text"`
}

func (TrainingRun) TableName() string { return "training_runs" }

// RunConfiguration is the frozen config snapshot persisted per training run.
type RunConfiguration struct {
	EmbeddingModel    string `json:"embedding_model"`
	ReducedDimensions int    `json:"reduced_dimensions"`
	MinClusterSize    int    `json:"min_cluster_size"`
}

// RejectedWish is the append-only audit record for moderated-out submissions.
type RejectedWish struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Content         string    `gorm:"type:text;not null"`
	RejectionReason string    `gorm:"size:255;not null"`
	ModerationModel string    `gorm:"size:100"`
	CreatedAt       time.Time
}

func (RejectedWish) TableName() string { return "rejected_wishes" }

func (r *RejectedWish) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
