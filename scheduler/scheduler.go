package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wishingwell/backend/pipeline"
)

// Runner is one batch assignment pass.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler periodically triggers the training pipeline.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      *zap.SugaredLogger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(runner Runner, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

// Start launches the periodic loop. Returns false if already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("Scheduler already running")
		return false
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stopChan)
	s.log.Infow("Scheduler started", "interval", s.interval)
	return true
}

// Stop halts the loop and waits for an in-flight tick to return.
// Returns false if not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn("Scheduler not running")
		return false
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Scheduler stopped")
	return true
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one pipeline pass. Admission rejections are routine and logged
// at info level; anything else is an error.
func (s *Scheduler) tick() {
	err := s.runner.Run(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.log.Infow("Skipping scheduled run, another run is in progress")
	case errors.Is(err, pipeline.ErrInsufficientWishes):
		s.log.Infow("Skipping scheduled run", "reason", err)
	default:
		s.log.Errorw("Scheduled run failed", "error", err)
	}
}
