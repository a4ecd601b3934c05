// Package scheduler polls the build-task queue and runs streaming
// builds on a bounded worker pool: claim a pending task, download the
// corpus, build the index file, upload the artifact.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vecindex/internal/repository"
	"github.com/vecindex/pkg/config"
	"github.com/vecindex/pkg/model"
	"github.com/vecindex/pkg/utils"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval  time.Duration // how often to poll for new tasks
	WorkerCount   int           // number of concurrent build workers
	TaskBatchSize int           // max tasks to fetch per poll
	WorkDir       string        // scratch directory for downloaded corpora
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  2 * time.Second,
		WorkerCount:   2,
		TaskBatchSize: 10,
		WorkDir:       "",
	}
}

// FromConfig creates scheduler config from application config.
func FromConfig(cfg *config.SchedulerConfig, workDir string) *Config {
	return &Config{
		PollInterval:  time.Duration(cfg.PollInterval) * time.Second,
		WorkerCount:   cfg.WorkerCount,
		TaskBatchSize: cfg.TaskBatchSize,
		WorkDir:       workDir,
	}
}

// Scheduler claims queued build tasks and drives them to completion.
type Scheduler struct {
	cfg       *Config
	tasks     repository.BuildTaskRepository
	processor *Processor
	logger    utils.Logger
	clock     utils.Clock

	workerSem chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New creates a Scheduler.
func New(cfg *Config, tasks repository.BuildTaskRepository, processor *Processor, logger utils.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Scheduler{
		cfg:       cfg,
		tasks:     tasks,
		processor: processor,
		logger:    logger,
		clock:     utils.NewRealClock(),
		workerSem: make(chan struct{}, cfg.WorkerCount),
		stopCh:    make(chan struct{}),
	}
}

// WithClock swaps the clock, for tests.
func (s *Scheduler) WithClock(clock utils.Clock) *Scheduler {
	s.clock = clock
	return s
}

// Run polls until ctx is canceled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("build scheduler started (poll=%s, workers=%d)",
		s.cfg.PollInterval, s.cfg.WorkerCount)

	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case <-s.stopCh:
			s.drain()
			return nil
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// Stop signals Run to exit and returns without waiting; Run waits for
// in-flight builds before it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

func (s *Scheduler) drain() {
	s.wg.Wait()
	s.logger.Info("build scheduler stopped")
}

// poll fetches a batch of pending tasks and dispatches the ones it can
// claim onto the worker pool.
func (s *Scheduler) poll(ctx context.Context) {
	pending, err := s.tasks.GetPendingTasks(ctx, s.cfg.TaskBatchSize)
	if err != nil {
		s.logger.Warn("poll for build tasks failed: %v", err)
		return
	}

	for _, task := range pending {
		claimed, err := s.tasks.ClaimTask(ctx, task.ID)
		if err != nil {
			s.logger.Warn("claim of build task %s failed: %v", task.UUID, err)
			continue
		}
		if !claimed {
			continue
		}

		select {
		case s.workerSem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		s.wg.Add(1)
		go func(task *model.BuildTask) {
			defer s.wg.Done()
			defer func() { <-s.workerSem }()
			s.runTask(ctx, task)
		}(task)
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *model.BuildTask) {
	s.logger.Info("build task %s: %s -> %s", task.UUID, task.InputKey, task.OutputKey)
	result, err := s.processor.Process(ctx, task)
	if err != nil {
		s.logger.Error("build task %s failed: %v", task.UUID, err)
		if markErr := s.tasks.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to record failure of %s: %v", task.UUID, markErr)
		}
		return
	}
	if err := s.tasks.MarkDone(ctx, task.ID, result.NumVectors, result.Dimension, result.SampleSize); err != nil {
		s.logger.Warn("failed to record completion of %s: %v", task.UUID, err)
		return
	}
	s.logger.Info("build task %s done: %d vectors, dim %d, sample %d",
		task.UUID, result.NumVectors, result.Dimension, result.SampleSize)
}
