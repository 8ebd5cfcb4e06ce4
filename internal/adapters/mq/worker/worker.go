// Package worker grades queued jobs in the background and records the results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/posgrade/internal/domain/model"
	"github.com/okian/posgrade/pkg/logger"
	"github.com/okian/posgrade/pkg/metrics"
)

const defaultPoolShutdownTimeout = 30 * time.Second

// Grader evaluates a job's working directory.
type Grader interface {
	GradeJob(ctx context.Context, job model.Job) model.Result
}

// Recorder persists a graded run.
type Recorder interface {
	Record(ctx context.Context, run model.Run) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan model.Job
}

// Worker processes jobs until its queue is drained or ctx is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	grader   Grader
	recorder Recorder
	name     string
	now      func() time.Time
	logger   logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, g Grader, r Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		grader:   g,
		recorder: r,
		name:     "worker",
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop. It returns when the queue channel is closed
// and empty, or when ctx is cancelled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("run_id", job.RunID), logger.Error(err))
			}
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job model.Job) error {
	done := metrics.WorkerBusy()
	defer done()

	res := w.grader.GradeJob(ctx, job)
	run := model.Run{
		Job:      job,
		Status:   model.RunGraded,
		Result:   &res,
		GradedAt: w.now().UTC(),
	}
	if err := w.recorder.Record(ctx, run); err != nil {
		metrics.RecordErrorByComponent("worker", "record_error")
		return fmt.Errorf("record run %s: %w", job.RunID, err)
	}
	w.logger.Debug(ctx, "job graded",
		logger.String("run_id", job.RunID),
		logger.String("participant", job.Participant),
		logger.Float64("score", res.Score),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	wg      sync.WaitGroup
}

// NewPool creates a pool of workerCount workers. A count below one uses
// one worker per CPU.
func NewPool(workerCount int, q Queue, g Grader, r Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, g, r, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned or ctx is done. Workers return
// once the queue is closed and drained, so callers close the queue first.
func (p *Pool) Wait(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPoolShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown timed out: %w", ctx.Err())
	}
}
