// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/posgrade/internal/adapters/archive"
	"github.com/okian/posgrade/internal/adapters/cache"
	eventqueue "github.com/okian/posgrade/internal/adapters/mq/queue"
	workerpool "github.com/okian/posgrade/internal/adapters/mq/worker"
	"github.com/okian/posgrade/internal/adapters/repository"
	"github.com/okian/posgrade/internal/domain/dedupe"
	"github.com/okian/posgrade/internal/domain/grading"
	"github.com/okian/posgrade/internal/domain/model"
	"github.com/okian/posgrade/internal/domain/types"
	"github.com/okian/posgrade/pkg/logger"
	"github.com/okian/posgrade/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize  = 1024
	defaultDedupeSize = 50000
	defaultCacheSize  = 1024
)

// Service implements the API dependencies for the grading system.
type Service struct {
	mu sync.RWMutex

	// Core components
	grader      *grading.Grader
	results     cache.ResultCache
	group       singleflight.Group
	leaderboard repository.Store
	deduper     dedupe.Deduper
	jobQueue    *eventqueue.InMemoryQueue
	workerPool  *workerpool.Pool
	archive     *archive.Store

	// In-flight runs, plus graded runs when no archive is configured.
	runsMu sync.RWMutex
	runs   map[string]model.Run

	// Configuration
	workRoot    string
	workerCount int
	queueSize   int
	dedupeSize  int
	cacheSize   int
	archivePath string
	newID       func() string
	now         func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workRoot:    ".",
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		cacheSize:   defaultCacheSize,
		newID:       uuid.NewString,
		now:         time.Now,
		runs:        make(map[string]model.Run),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.grader == nil {
		s.grader = grading.New(grading.WithLogger(s.logger))
	}
	return s
}

// Start initializes the components and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting grading service...")

	results, err := cache.New(cache.WithMaxEntries(s.cacheSize))
	if err != nil {
		return err
	}
	s.results = results
	s.leaderboard = repository.NewSortedStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	if s.archivePath != "" {
		store, err := archive.Open(s.archivePath)
		if err != nil {
			s.results.Close()
			return err
		}
		s.archive = store
		if err := s.restore(ctx); err != nil {
			s.results.Close()
			_ = s.archive.Close()
			return fmt.Errorf("restore leaderboard: %w", err)
		}
	}

	s.jobQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s, s,
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithClock(s.now),
	)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "grading service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("cacheSize", s.cacheSize),
		logger.String("archive", s.archivePath),
	)
	return nil
}

// restore replays archived graded runs into the leaderboard and marks every
// archived run ID as seen.
func (s *Service) restore(ctx context.Context) error {
	restored := 0
	err := s.archive.ForEach(ctx, func(run model.Run) error {
		s.deduper.SeenAndRecord(ctx, run.RunID)
		if run.Status != model.RunGraded || run.Result == nil {
			return nil
		}
		if _, err := s.leaderboard.UpdateBest(ctx, run.Participant, run.Result.Score, run.RunID, run.GradedAt); err != nil {
			s.logger.Warn(ctx, "skipping archived run", logger.String("run_id", run.RunID), logger.Error(err))
			return nil
		}
		restored++
		return nil
	})
	if err == nil {
		s.logger.Info(ctx, "leaderboard restored from archive", logger.Int("runs", restored))
	}
	return err
}

// Stop closes the queue, waits for queued jobs to finish and releases
// resources. Jobs still running when ctx expires are abandoned.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping grading service...")

	var errs []error
	_ = s.jobQueue.Close()
	if err := s.workerPool.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	s.results.Close()
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}

	s.logger.Info(ctx, "grading service stopped")
	return errors.Join(errs...)
}

// Grade synchronously grades the files in workDir, a path relative to the
// configured work root. Identical inputs are served from the result cache,
// and concurrent identical requests share one evaluation.
func (s *Service) Grade(ctx context.Context, workDir, transcript string) (model.Result, error) {
	dir, err := s.resolveDir(workDir)
	if err != nil {
		return model.Result{}, err
	}
	return s.gradeDir(ctx, dir, transcript), nil
}

// GradeJob implements the worker's Grader.
func (s *Service) GradeJob(ctx context.Context, job model.Job) model.Result {
	return s.gradeDir(ctx, job.WorkDir, job.Transcript)
}

func (s *Service) gradeDir(ctx context.Context, dir, transcript string) model.Result {
	key, err := s.grader.Fingerprint(dir)
	if err != nil {
		s.logger.Warn(ctx, "fingerprint failed, grading without cache", logger.String("dir", dir), logger.Error(err))
		return s.grader.GradeDir(ctx, dir, transcript)
	}

	s.mu.RLock()
	results := s.results
	s.mu.RUnlock()
	if results != nil {
		if res, ok := results.Get(ctx, key); ok {
			metrics.RecordCacheHit()
			return res
		}
	}

	// The evaluation is shared by every coalesced caller, so it must outlive
	// the caller that started it.
	shared := context.WithoutCancel(ctx)
	v, _, coalesced := s.group.Do(key, func() (any, error) {
		res := s.grader.GradeDir(shared, dir, transcript)
		if results != nil && res.ErrorKind() != model.ErrorProcessing {
			results.Put(shared, key, res)
		}
		return res, nil
	})
	if coalesced {
		metrics.RecordCoalesced()
	}
	return v.(model.Result).Clone()
}

// Submit queues a grading run and returns it in the queued state.
func (s *Service) Submit(ctx context.Context, req model.RunRequest) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Run{}, model.ErrNotStarted
	}

	participant := strings.TrimSpace(req.Participant)
	if participant == "" {
		return model.Run{}, fmt.Errorf("%w: participant is required", model.ErrInvalidJob)
	}
	dir, err := s.resolveDir(req.WorkDir)
	if err != nil {
		return model.Run{}, err
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = s.newID()
	}
	if s.deduper.SeenAndRecord(ctx, runID) {
		return model.Run{}, fmt.Errorf("%w: %s", model.ErrDuplicateRun, runID)
	}

	run := model.Run{
		Job: model.Job{
			RunID:       runID,
			Participant: participant,
			WorkDir:     dir,
			Transcript:  req.Transcript,
			SubmittedAt: s.now().UTC(),
		},
		Status: model.RunQueued,
	}
	s.putRun(run)

	if err := s.jobQueue.Enqueue(ctx, run.Job); err != nil {
		s.deduper.Unrecord(ctx, runID)
		s.deleteRun(runID)
		if errors.Is(err, eventqueue.ErrQueueFull) {
			return model.Run{}, fmt.Errorf("%w: %w", model.ErrBackpressure, err)
		}
		return model.Run{}, err
	}
	s.logger.Debug(ctx, "run queued", logger.String("run_id", runID), logger.String("participant", participant))
	return run, nil
}

// Record implements the worker's Recorder.
func (s *Service) Record(ctx context.Context, run model.Run) error {
	if run.Result == nil {
		return fmt.Errorf("%w: run %s has no result", model.ErrInvalidJob, run.RunID)
	}
	var errs []error
	if _, err := s.leaderboard.UpdateBest(ctx, run.Participant, run.Result.Score, run.RunID, run.GradedAt); err != nil {
		metrics.RecordErrorByComponent("leaderboard", "update_error")
		errs = append(errs, fmt.Errorf("update leaderboard: %w", err))
	}

	if s.archive == nil {
		s.putRun(run)
		return errors.Join(errs...)
	}
	if err := s.archive.Put(ctx, run); err != nil {
		metrics.RecordArchiveError()
		s.putRun(run)
		errs = append(errs, fmt.Errorf("archive run: %w", err))
		return errors.Join(errs...)
	}
	s.deleteRun(run.RunID)
	return errors.Join(errs...)
}

// Run returns the state of a submitted run.
func (s *Service) Run(ctx context.Context, runID string) (model.Run, error) {
	s.runsMu.RLock()
	run, ok := s.runs[runID]
	s.runsMu.RUnlock()
	if ok {
		return run, nil
	}
	if s.archive != nil {
		run, err := s.archive.Get(ctx, runID)
		if err == nil {
			return run, nil
		}
		if errors.Is(err, archive.ErrClosed) {
			return model.Run{}, fmt.Errorf("%w: archive closed", model.ErrNotStarted)
		}
		if !errors.Is(err, archive.ErrNotFound) {
			return model.Run{}, err
		}
	}
	return model.Run{}, fmt.Errorf("%w: %s", model.ErrRunNotFound, runID)
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if s.leaderboard == nil {
		return nil, model.ErrNotStarted
	}
	return s.leaderboard.TopN(ctx, n)
}

// Rank returns the leaderboard entry for a participant.
func (s *Service) Rank(ctx context.Context, participant string) (types.Entry, error) {
	if s.leaderboard == nil {
		return types.Entry{}, model.ErrNotStarted
	}
	entry, err := s.leaderboard.Rank(ctx, participant)
	if errors.Is(err, repository.ErrNotFound) {
		return types.Entry{}, fmt.Errorf("%w: %s", model.ErrParticipantNotFound, participant)
	}
	return entry, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"cacheSize":   s.cacheSize,
		"archive":     s.archivePath != "",
	}
	if s.started {
		s.runsMu.RLock()
		stats["runsInMemory"] = len(s.runs)
		s.runsMu.RUnlock()
		stats["queueLength"] = s.jobQueue.Len()
		stats["participants"] = s.leaderboard.Count(ctx)
		stats["trackedRunIDs"] = s.deduper.Size()
		if s.archive != nil {
			if n, err := s.archive.Count(); err == nil {
				stats["archivedRuns"] = n
			}
		}
	}
	return stats
}

// resolveDir maps a request directory onto the work root. Absolute paths and
// paths escaping the root are rejected.
func (s *Service) resolveDir(workDir string) (string, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" || workDir == "." {
		return s.workRoot, nil
	}
	if !filepath.IsLocal(workDir) {
		return "", fmt.Errorf("%w: workdir %q must be relative to the work root", model.ErrInvalidJob, workDir)
	}
	return filepath.Join(s.workRoot, workDir), nil
}

func (s *Service) putRun(run model.Run) {
	s.runsMu.Lock()
	s.runs[run.RunID] = run
	s.runsMu.Unlock()
}

func (s *Service) deleteRun(runID string) {
	s.runsMu.Lock()
	delete(s.runs, runID)
	s.runsMu.Unlock()
}
