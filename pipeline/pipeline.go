package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/wishingwell/backend/clustering"
	"github.com/wishingwell/backend/config"
	"github.com/wishingwell/backend/labeling"
	"github.com/wishingwell/backend/models"
	"github.com/wishingwell/backend/repository"
)

var (
	// ErrRunInProgress signals an admission conflict with a live run.
	ErrRunInProgress = repository.ErrRunInProgress
	// ErrInsufficientWishes signals too few eligible wishes to cluster.
	ErrInsufficientWishes = errors.New("not enough unassigned wishes to train")
)

const (
	topKeywordCount     = 10
	sampleDocumentCount = 5
)

// Engine is the embedding+clustering capability.
type Engine interface {
	Cluster(ctx context.Context, docs []string) (*clustering.Result, error)
}

// Labeler generates a topic name and description from keywords and samples.
type Labeler interface {
	Generate(ctx context.Context, keywords, samples []string) (labeling.Label, error)
}

// ArtifactStore receives the summary of a completed run.
type ArtifactStore interface {
	UploadRunSummary(ctx context.Context, version int, payload []byte) error
}

// Pipeline is the batch topic-assignment job: it fetches unassigned wishes,
// clusters them, labels each cluster, and commits the topic structure and
// probabilistic assignments in one transaction.
type Pipeline struct {
	repo      *repository.Repository
	engine    Engine
	labeler   Labeler
	artifacts ArtifactStore
	settings  config.Settings
	log       *zap.SugaredLogger
}

// New builds a pipeline. artifacts may be nil to disable summary export.
func New(repo *repository.Repository, engine Engine, labeler Labeler, artifacts ArtifactStore, settings config.Settings, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		repo:      repo,
		engine:    engine,
		labeler:   labeler,
		artifacts: artifacts,
		settings:  settings,
		log:       log,
	}
}

// Admit checks the admission rules and, when they pass, commits the running
// run marker. The committed marker is what makes a concurrent trigger see
// the conflict; no other lock is involved.
func (p *Pipeline) Admit(ctx context.Context) (*models.TrainingRun, error) {
	count, err := p.repo.CountUnassignedWishes()
	if err != nil {
		return nil, err
	}
	if count < int64(p.settings.MinClusterSize) {
		return nil, fmt.Errorf("%w: have %d, need at least %d",
			ErrInsufficientWishes, count, p.settings.MinClusterSize)
	}

	snapshot, err := json.Marshal(models.RunConfiguration{
		EmbeddingModel:    p.settings.EmbeddingModel,
		ReducedDimensions: p.settings.ReducedDimensions,
		MinClusterSize:    p.settings.MinClusterSize,
	})
	if err != nil {
		return nil, err
	}

	run, err := p.repo.CreateRunningRun(int(count), string(snapshot))
	if err != nil {
		return nil, err
	}
	p.log.Infow("Training run admitted", "version", run.Version, "wishes", run.WishesCount)
	return run, nil
}

// Execute drives an admitted run to a terminal state. Any failure after the
// running marker rolls back all speculative topic writes and marks the run
// failed; the affected wishes stay unassigned for the next run.
func (p *Pipeline) Execute(ctx context.Context, run *models.TrainingRun) error {
	if err := p.execute(ctx, run); err != nil {
		p.log.Errorw("Training run failed", "version", run.Version, "error", err)
		if failErr := p.repo.FailRun(run.ID); failErr != nil {
			p.log.Errorw("Could not mark run failed", "version", run.Version, "error", failErr)
		}
		return err
	}
	return nil
}

// Run performs one complete batch assignment pass.
func (p *Pipeline) Run(ctx context.Context) error {
	run, err := p.Admit(ctx)
	if err != nil {
		return err
	}
	return p.Execute(ctx, run)
}

// ResetStuckRuns force-fails any run still marked running. Recovery path for
// a crash that left a stale marker.
func (p *Pipeline) ResetStuckRuns() (int64, error) {
	return p.repo.ResetStuckRuns()
}

// topicPlan is one cluster's pending topic, fully prepared before any store
// write happens.
type topicPlan struct {
	label       int
	name        string
	description string
	members     []int
}

func (p *Pipeline) execute(ctx context.Context, run *models.TrainingRun) error {
	wishes, err := p.repo.ListUnassignedWishes()
	if err != nil {
		return err
	}
	docs := make([]string, len(wishes))
	for i, w := range wishes {
		docs[i] = w.Content
	}

	result, err := p.engine.Cluster(ctx, docs)
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}
	if len(result.Labels) != len(docs) {
		return fmt.Errorf("clustering returned %d labels for %d documents", len(result.Labels), len(docs))
	}

	plans := p.buildPlans(ctx, docs, result)

	topics := make([]*models.Topic, 0, len(plans))
	err = p.repo.Transaction(func(tx *repository.Repository) error {
		for _, plan := range plans {
			topic := &models.Topic{
				Name:           plan.name,
				Description:    plan.description,
				WishCount:      len(plan.members),
				EmbeddingModel: p.settings.EmbeddingModel,
				TrainingRunID:  run.ID,
				CreatedAt:      time.Now(),
			}
			if err := tx.CreateTopic(topic); err != nil {
				return err
			}
			for _, idx := range plan.members {
				prob := roundProbability(result.Probabilities[idx][plan.label])
				if err := tx.AssignWish(wishes[idx].ID, topic.ID, prob); err != nil {
					return err
				}
			}
			topics = append(topics, topic)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.repo.CompleteRun(run.ID, len(plans)); err != nil {
		return err
	}
	p.log.Infow("Training run completed",
		"version", run.Version,
		"wishes", len(wishes),
		"topics_created", len(plans),
	)

	p.exportSummary(ctx, run, topics)
	return nil
}

// buildPlans derives keywords, representative samples, and a label for every
// surviving cluster. Label generation failures fall back to a deterministic
// keyword label; they never abort the run.
func (p *Pipeline) buildPlans(ctx context.Context, docs []string, result *clustering.Result) []topicPlan {
	labels := result.ClusterLabels()
	plans := make([]topicPlan, 0, len(labels))
	for _, clusterLabel := range labels {
		members := result.Members[clusterLabel]
		clusterDocs := make([]string, len(members))
		for i, idx := range members {
			clusterDocs[i] = docs[idx]
		}

		keywords := clustering.TopKeywords(clusterDocs, topKeywordCount)
		samples := clusterDocs
		if len(samples) > sampleDocumentCount {
			samples = samples[:sampleDocumentCount]
		}

		label, err := p.labeler.Generate(ctx, keywords, samples)
		if err != nil {
			p.log.Warnw("Label generation failed, using keyword fallback",
				"cluster", clusterLabel, "error", err)
			label = labeling.Fallback(keywords)
		}

		plans = append(plans, topicPlan{
			label:       clusterLabel,
			name:        label.Name,
			description: label.Description,
			members:     members,
		})
	}
	return plans
}

// runSummary is the artifact exported after a completed run.
type runSummary struct {
	Version     int                 `json:"version"`
	WishesCount int                 `json:"wishes_count"`
	Topics      []runSummaryTopic   `json:"topics"`
	CompletedAt time.Time           `json:"completed_at"`
}

type runSummaryTopic struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	WishCount int    `json:"wish_count"`
}

// exportSummary is best-effort: an upload failure never fails the run.
func (p *Pipeline) exportSummary(ctx context.Context, run *models.TrainingRun, topics []*models.Topic) {
	if p.artifacts == nil {
		return
	}
	summary := runSummary{
		Version:     run.Version,
		WishesCount: run.WishesCount,
		Topics:      make([]runSummaryTopic, 0, len(topics)),
		CompletedAt: time.Now(),
	}
	for _, t := range topics {
		summary.Topics = append(summary.Topics, runSummaryTopic{
			ID:        t.ID,
			Name:      t.Name,
			WishCount: t.WishCount,
		})
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		p.log.Warnw("Could not marshal run summary", "version", run.Version, "error", err)
		return
	}
	if err := p.artifacts.UploadRunSummary(ctx, run.Version, payload); err != nil {
		p.log.Warnw("Run summary upload failed", "version", run.Version, "error", err)
	}
}

// roundProbability clamps to [0,1] and keeps four fractional digits, the
// precision of the assignment column.
func roundProbability(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return math.Round(p*10000) / 10000
}
