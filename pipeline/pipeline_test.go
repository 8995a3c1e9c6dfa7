package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wishingwell/backend/clustering"
	"github.com/wishingwell/backend/config"
	"github.com/wishingwell/backend/labeling"
	"github.com/wishingwell/backend/models"
	"github.com/wishingwell/backend/repository"
)

func testSettings() config.Settings {
	return config.Settings{
		EmbeddingModel:    "test-embedding",
		ReducedDimensions: 0,
		MinClusterSize:    10,
	}
}

func testRepo(t *testing.T) *repository.Repository {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewRepository(db)
}

// themeEmbedder maps each document onto an axis by theme keyword, so
// clustering splits documents exactly along themes.
type themeEmbedder struct{}

func (themeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	vecs := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, 3)
		if strings.Contains(in, "travel") {
			v[1] = 1
		} else {
			v[0] = 1
		}
		v[2] = 0.01 * float32(i%7+1)
		vecs[i] = v
	}
	return vecs, nil
}

type stubLabeler struct {
	err   error
	calls int
}

func (s *stubLabeler) Generate(_ context.Context, keywords, samples []string) (labeling.Label, error) {
	s.calls++
	if s.err != nil {
		return labeling.Label{}, s.err
	}
	return labeling.Label{
		Name:        fmt.Sprintf("Generated Topic %d", s.calls),
		Description: "stub description",
	}, nil
}

type failingEngine struct{ err error }

func (f *failingEngine) Cluster(context.Context, []string) (*clustering.Result, error) {
	return nil, f.err
}

type captureStore struct {
	version int
	payload []byte
	err     error
	calls   int
}

func (c *captureStore) UploadRunSummary(_ context.Context, version int, payload []byte) error {
	c.calls++
	c.version = version
	c.payload = payload
	return c.err
}

func newTestPipeline(t *testing.T, labeler Labeler, artifacts ArtifactStore) (*Pipeline, *repository.Repository) {
	t.Helper()
	repo := testRepo(t)
	settings := testSettings()
	log := zap.NewNop().Sugar()
	engine := clustering.NewEngine(themeEmbedder{}, settings, log)
	return New(repo, engine, labeler, artifacts, settings, log), repo
}

func seedWishes(t *testing.T, repo *repository.Repository, theme string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := repo.CreateWish(fmt.Sprintf("a %s wish number %d", theme, i)); err != nil {
			t.Fatalf("CreateWish: %v", err)
		}
	}
}

func TestRunAssignsOnlyLargeClusters(t *testing.T) {
	// 12 health wishes and 8 travel wishes with a minimum cluster size of
	// 10: the travel group dissolves into outliers and stays unassigned.
	pipe, repo := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, repo, "health", 12)
	seedWishes(t, repo, "travel", 8)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("status = %q, want completed", run.Status)
	}
	if run.WishesCount != 20 {
		t.Errorf("wishes_count = %d, want 20", run.WishesCount)
	}
	if run.TopicsCreated != 1 {
		t.Errorf("topics_created = %d, want 1", run.TopicsCreated)
	}
	if run.CompletedAt == nil {
		t.Error("completed_at should be set")
	}

	topics, _, err := repo.ListTopics("popular", 10)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(topics))
	}
	topic := topics[0]
	if topic.WishCount != 12 {
		t.Errorf("wish_count = %d, want 12", topic.WishCount)
	}
	if topic.EmbeddingModel != "test-embedding" {
		t.Errorf("embedding_model = %q", topic.EmbeddingModel)
	}
	if topic.TrainingRunID != run.ID {
		t.Errorf("training_run_id = %d, want %d", topic.TrainingRunID, run.ID)
	}

	rows, err := repo.TopicWishes(topic.ID, 20)
	if err != nil {
		t.Fatalf("TopicWishes: %v", err)
	}
	if len(rows) != 12 {
		t.Errorf("assignments = %d, want 12", len(rows))
	}
	for _, row := range rows {
		if row.Probability <= 0 || row.Probability > 1 {
			t.Errorf("probability out of range: %v", row.Probability)
		}
	}

	// Outliers stay eligible for the next run.
	unassigned, err := repo.CountUnassignedWishes()
	if err != nil {
		t.Fatalf("CountUnassignedWishes: %v", err)
	}
	if unassigned != 8 {
		t.Errorf("unassigned = %d, want 8", unassigned)
	}
}

func TestRunTwoThemesTwoTopics(t *testing.T) {
	pipe, repo := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, repo, "health", 12)
	seedWishes(t, repo, "travel", 12)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	topics, _, err := repo.ListTopics("popular", 10)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	for _, topic := range topics {
		if topic.WishCount != 12 {
			t.Errorf("topic %q: wish_count = %d, want 12", topic.Name, topic.WishCount)
		}
		rows, err := repo.TopicWishes(topic.ID, 20)
		if err != nil {
			t.Fatalf("TopicWishes: %v", err)
		}
		if len(rows) != topic.WishCount {
			t.Errorf("topic %q: wish_count %d but %d assignments", topic.Name, topic.WishCount, len(rows))
		}
	}

	unassigned, err := repo.CountUnassignedWishes()
	if err != nil {
		t.Fatalf("CountUnassignedWishes: %v", err)
	}
	if unassigned != 0 {
		t.Errorf("unassigned = %d, want 0", unassigned)
	}
}

func TestAdmitInsufficientWishes(t *testing.T) {
	pipe, repo := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, repo, "health", 5)

	if _, err := pipe.Admit(context.Background()); !errors.Is(err, ErrInsufficientWishes) {
		t.Fatalf("expected ErrInsufficientWishes, got %v", err)
	}
	// A declined admission leaves no run record behind.
	if _, err := repo.LatestRun(); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected no runs, got %v", err)
	}
}

func TestAdmitConflict(t *testing.T) {
	pipe, repo := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, repo, "health", 12)

	run, err := pipe.Admit(context.Background())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if run.Status != models.RunStatusRunning {
		t.Errorf("status = %q, want running", run.Status)
	}

	if _, err := pipe.Admit(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	// The config snapshot is frozen on the run record.
	latest, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if !strings.Contains(latest.Configuration, `"min_cluster_size":10`) {
		t.Errorf("configuration snapshot missing fields: %s", latest.Configuration)
	}
	if !strings.Contains(latest.Configuration, `"embedding_model":"test-embedding"`) {
		t.Errorf("configuration snapshot missing model: %s", latest.Configuration)
	}
}

func TestExecuteFailureMarksRunFailed(t *testing.T) {
	repo := testRepo(t)
	settings := testSettings()
	log := zap.NewNop().Sugar()
	pipe := New(repo, &failingEngine{err: errors.New("embed down")}, &stubLabeler{}, nil, settings, log)
	seedWishes(t, repo, "health", 12)

	err := pipe.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failing engine")
	}

	run, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("status = %q, want failed", run.Status)
	}
	if run.CompletedAt != nil {
		t.Error("failed run should not have completed_at")
	}

	// Nothing was assigned; the wishes stay eligible.
	unassigned, _ := repo.CountUnassignedWishes()
	if unassigned != 12 {
		t.Errorf("unassigned = %d, want 12", unassigned)
	}

	// With the failed marker cleared, a new run admits.
	if _, err := pipe.Admit(context.Background()); err != nil {
		t.Errorf("Admit after failure: %v", err)
	}
}

func TestPersistFailureRollsBackEverything(t *testing.T) {
	pipe, repo := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, repo, "health", 12)

	// Sabotage the assignment table so the persist transaction fails after
	// the topic insert and the wish update already happened.
	if err := repo.DB().Exec("DROP TABLE topic_wishes").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if err := pipe.Run(context.Background()); err == nil {
		t.Fatal("expected persist failure")
	}

	run, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("status = %q, want failed", run.Status)
	}

	var topicCount int64
	if err := repo.DB().Model(&models.Topic{}).Count(&topicCount).Error; err != nil {
		t.Fatalf("count topics: %v", err)
	}
	if topicCount != 0 {
		t.Errorf("topics = %d, want 0 after rollback", topicCount)
	}

	unassigned, err := repo.CountUnassignedWishes()
	if err != nil {
		t.Fatalf("CountUnassignedWishes: %v", err)
	}
	if unassigned != 12 {
		t.Errorf("unassigned = %d, want 12 after rollback", unassigned)
	}
}

func TestRunIdempotence(t *testing.T) {
	pipe, repo := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, repo, "health", 12)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Everything assigned; an immediate re-run declines at admission.
	if err := pipe.Run(context.Background()); !errors.Is(err, ErrInsufficientWishes) {
		t.Fatalf("expected ErrInsufficientWishes, got %v", err)
	}

	run, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Version != 1 {
		t.Errorf("version = %d, want 1", run.Version)
	}
}

func TestLabelFallbackOnGeneratorFailure(t *testing.T) {
	pipe, repo := newTestPipeline(t, &stubLabeler{err: errors.New("llm down")}, nil)
	seedWishes(t, repo, "health", 12)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	topics, _, err := repo.ListTopics("popular", 10)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(topics))
	}
	if !strings.HasPrefix(topics[0].Name, "Topic:") {
		t.Errorf("expected fallback label, got %q", topics[0].Name)
	}
}

func TestResetStuckRunsUnblocksAdmission(t *testing.T) {
	pipe, _ := newTestPipeline(t, &stubLabeler{}, nil)
	seedWishes(t, pipe.repo, "health", 12)

	if _, err := pipe.Admit(context.Background()); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := pipe.Admit(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected conflict, got %v", err)
	}

	count, err := pipe.ResetStuckRuns()
	if err != nil {
		t.Fatalf("ResetStuckRuns: %v", err)
	}
	if count != 1 {
		t.Errorf("reset count = %d, want 1", count)
	}

	if _, err := pipe.Admit(context.Background()); err != nil {
		t.Errorf("Admit after reset: %v", err)
	}
}

func TestRunSummaryExport(t *testing.T) {
	store := &captureStore{}
	pipe, repo := newTestPipeline(t, &stubLabeler{}, store)
	seedWishes(t, repo, "health", 12)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.calls != 1 {
		t.Fatalf("expected one upload, got %d", store.calls)
	}
	if store.version != 1 {
		t.Errorf("version = %d, want 1", store.version)
	}
	payload := string(store.payload)
	if !strings.Contains(payload, `"wishes_count":12`) {
		t.Errorf("payload missing wishes_count: %s", payload)
	}
	if !strings.Contains(payload, "Generated Topic") {
		t.Errorf("payload missing topic name: %s", payload)
	}
}

func TestRunSummaryUploadFailureDoesNotFailRun(t *testing.T) {
	store := &captureStore{err: errors.New("storage down")}
	pipe, repo := newTestPipeline(t, &stubLabeler{}, store)
	seedWishes(t, repo, "health", 12)

	if err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run should succeed despite upload failure: %v", err)
	}

	run, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("status = %q, want completed", run.Status)
	}
}

func TestRoundProbability(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.123456, 0.1235},
		{0.99999, 1},
		{-0.2, 0},
		{1.7, 1},
		{0.5, 0.5},
	}
	for _, tt := range tests {
		if got := roundProbability(tt.in); got != tt.want {
			t.Errorf("roundProbability(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
