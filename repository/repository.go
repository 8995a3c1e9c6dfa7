package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishingwell/backend/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress is returned when a running training run already exists.
	ErrRunInProgress = errors.New("training run already in progress")
)

// Repository handles database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn against a transactional repository. Any error rolls
// the whole transaction back.
func (r *Repository) Transaction(fn func(tx *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// --- Wishes ---

// CreateWish stores an accepted submission. The wish starts unassigned.
func (r *Repository) CreateWish(content string) (*models.Wish, error) {
	wish := &models.Wish{
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.db.Create(wish).Error; err != nil {
		return nil, fmt.Errorf("failed to create wish: %w", err)
	}
	return wish, nil
}

// GetWish retrieves a wish by ID, including soft-deleted ones.
func (r *Repository) GetWish(id uuid.UUID) (*models.Wish, error) {
	var wish models.Wish
	if err := r.db.Where("id = ?", id).First(&wish).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wish, nil
}

// ListWishes returns a page of non-deleted wishes. Sort "recent" orders by
// creation time; "popular" puts wishes from the largest topics first.
func (r *Repository) ListWishes(page, limit int, sort string) ([]models.Wish, int64, error) {
	base := r.db.Model(&models.Wish{}).Where("wishes.is_deleted = ?", false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.Model(&models.Wish{}).Where("wishes.is_deleted = ?", false)
	switch sort {
	case "popular":
		query = query.
			Joins("LEFT JOIN topics ON topics.id = wishes.topic_id").
			Order("COALESCE(topics.wish_count, 0) DESC").
			Order("wishes.created_at DESC")
	default:
		query = query.Order("wishes.created_at DESC")
	}

	var wishes []models.Wish
	offset := (page - 1) * limit
	if err := query.Offset(offset).Limit(limit).Find(&wishes).Error; err != nil {
		return nil, 0, err
	}
	return wishes, total, nil
}

// RelatedWishes lists other non-deleted wishes sharing a primary topic.
func (r *Repository) RelatedWishes(topicID int, exclude uuid.UUID, limit int) ([]models.Wish, error) {
	var wishes []models.Wish
	err := r.db.
		Where("topic_id = ? AND id <> ? AND is_deleted = ?", topicID, exclude, false).
		Limit(limit).
		Find(&wishes).Error
	if err != nil {
		return nil, err
	}
	return wishes, nil
}

// SoftDeleteWish marks a wish deleted without removing the row.
func (r *Repository) SoftDeleteWish(id uuid.UUID) error {
	result := r.db.Model(&models.Wish{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnassignedWishes counts wishes eligible for the next training run.
func (r *Repository) CountUnassignedWishes() (int64, error) {
	var count int64
	err := r.db.Model(&models.Wish{}).
		Where("topic_id IS NULL AND is_deleted = ?", false).
		Count(&count).Error
	return count, err
}

// ListUnassignedWishes loads all eligible wishes in creation order. The
// order is the fetch order only; it is not stable across runs.
func (r *Repository) ListUnassignedWishes() ([]models.Wish, error) {
	var wishes []models.Wish
	err := r.db.
		Where("topic_id IS NULL AND is_deleted = ?", false).
		Order("created_at ASC").
		Find(&wishes).Error
	if err != nil {
		return nil, err
	}
	return wishes, nil
}

// CreateRejectedWish appends a moderation audit record.
func (r *Repository) CreateRejectedWish(content, reason, moderationModel string) (*models.RejectedWish, error) {
	rejected := &models.RejectedWish{
		Content:         content,
		RejectionReason: reason,
		ModerationModel: moderationModel,
		CreatedAt:       time.Now(),
	}
	if err := r.db.Create(rejected).Error; err != nil {
		return nil, fmt.Errorf("failed to create rejected wish: %w", err)
	}
	return rejected, nil
}

// --- Topics ---

// CreateTopic inserts a topic row.
func (r *Repository) CreateTopic(topic *models.Topic) error {
	if err := r.db.Create(topic).Error; err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

// AssignWish sets a wish's primary topic and records the assignment with the
// probability reported by the clustering engine.
func (r *Repository) AssignWish(wishID uuid.UUID, topicID int, probability float64) error {
	result := r.db.Model(&models.Wish{}).
		Where("id = ?", wishID).
		Updates(map[string]interface{}{
			"topic_id":   topicID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	assignment := &models.WishTopicAssignment{
		TopicID:     topicID,
		WishID:      wishID,
		Probability: probability,
		IsPrimary:   true,
	}
	return r.db.Create(assignment).Error
}

// GetTopic retrieves a topic by ID.
func (r *Repository) GetTopic(id int) (*models.Topic, error) {
	var topic models.Topic
	if err := r.db.Where("id = ?", id).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &topic, nil
}

// ListTopics lists topics sorted by "popular" (wish count), "recent", or
// "name".
func (r *Repository) ListTopics(sort string, limit int) ([]models.Topic, int64, error) {
	var total int64
	if err := r.db.Model(&models.Topic{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.Model(&models.Topic{})
	switch sort {
	case "recent":
		query = query.Order("created_at DESC")
	case "name":
		query = query.Order("name ASC")
	default:
		query = query.Order("wish_count DESC")
	}

	var topics []models.Topic
	if err := query.Limit(limit).Find(&topics).Error; err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

// TrendingTopics returns the largest, most recently created topics.
func (r *Repository) TrendingTopics(limit int) ([]models.Topic, error) {
	var topics []models.Topic
	err := r.db.Model(&models.Topic{}).
		Order("wish_count DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&topics).Error
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// TopicWishRow is a wish joined with its assignment probability.
type TopicWishRow struct {
	ID          uuid.UUID
	Content     string
	Probability float64
	CreatedAt   time.Time
}

// TopicWishes lists the non-deleted wishes assigned to a topic, most
// probable first.
func (r *Repository) TopicWishes(topicID, limit int) ([]TopicWishRow, error) {
	var rows []TopicWishRow
	err := r.db.Table("topic_wishes").
		Select("wishes.id AS id, wishes.content AS content, topic_wishes.probability AS probability, wishes.created_at AS created_at").
		Joins("JOIN wishes ON wishes.id = topic_wishes.wish_id").
		Where("topic_wishes.topic_id = ? AND wishes.is_deleted = ?", topicID, false).
		Order("topic_wishes.probability DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Training runs ---

// CreateRunningRun atomically admits a new training run: inside one
// transaction it checks for a live run, computes the next version, and
// inserts the running marker. The partial unique index on status backstops
// the check, so a lost race surfaces as ErrRunInProgress rather than a
// second running row.
func (r *Repository) CreateRunningRun(wishesCount int, configuration string) (*models.TrainingRun, error) {
	run := &models.TrainingRun{
		Status:        models.RunStatusRunning,
		WishesCount:   wishesCount,
		TopicsCreated: 0,
		StartedAt:     time.Now(),
		Configuration: configuration,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var running int64
		if err := tx.Model(&models.TrainingRun{}).
			Where("status = ?", models.RunStatusRunning).
			Count(&running).Error; err != nil {
			return err
		}
		if running > 0 {
			return ErrRunInProgress
		}

		var maxVersion int64
		if err := tx.Model(&models.TrainingRun{}).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		run.Version = int(maxVersion) + 1

		return tx.Create(run).Error
	})
	if err != nil {
		if errors.Is(err, ErrRunInProgress) || isUniqueViolation(err) {
			return nil, ErrRunInProgress
		}
		return nil, fmt.Errorf("failed to create training run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent training run by version.
func (r *Repository) LatestRun() (*models.TrainingRun, error) {
	var run models.TrainingRun
	if err := r.db.Order("version DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the last limit runs, newest first, plus the total count.
func (r *Repository) ListRuns(limit int) ([]models.TrainingRun, int64, error) {
	var total int64
	if err := r.db.Model(&models.TrainingRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.TrainingRun
	err := r.db.Order("version DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// CompleteRun transitions a run to completed.
func (r *Repository) CompleteRun(runID, topicsCreated int) error {
	now := time.Now()
	return r.db.Model(&models.TrainingRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":         models.RunStatusCompleted,
			"topics_created": topicsCreated,
			"completed_at":   now,
		}).Error
}

// FailRun transitions a run to failed. Only the status changes; any
// speculative topic writes were already rolled back by the caller.
func (r *Repository) FailRun(runID int) error {
	return r.db.Model(&models.TrainingRun{}).
		Where("id = ?", runID).
		Update("status", models.RunStatusFailed).Error
}

// ResetStuckRuns force-fails every run still marked running. Used to recover
// from a crash that left a stale marker; wish and topic data are untouched.
func (r *Repository) ResetStuckRuns() (int64, error) {
	result := r.db.Model(&models.TrainingRun{}).
		Where("status = ?", models.RunStatusRunning).
		Update("status", models.RunStatusFailed)
	return result.RowsAffected, result.Error
}

// --- Stats ---

// Stats holds the admin overview counters.
type Stats struct {
	TotalWishes      int64
	UnassignedWishes int64
	TotalTopics      int64
}

// GetStats computes the admin overview.
func (r *Repository) GetStats() (*Stats, error) {
	var stats Stats
	err := r.db.Model(&models.Wish{}).
		Where("is_deleted = ?", false).
		Count(&stats.TotalWishes).Error
	if err != nil {
		return nil, err
	}
	stats.UnassignedWishes, err = r.CountUnassignedWishes()
	if err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Topic{}).Count(&stats.TotalTopics).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// isUniqueViolation matches the duplicate-key errors Postgres and SQLite
// report when the single-running index rejects a second running insert.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint")
}
