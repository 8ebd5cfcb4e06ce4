package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/posgrade/internal/adapters/mq/queue"
	"github.com/okian/posgrade/internal/adapters/mq/worker"
	"github.com/okian/posgrade/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockGrader struct {
	mu     sync.Mutex
	scores map[string]float64
	calls  int
}

func (m *mockGrader) GradeJob(_ context.Context, job model.Job) model.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return model.Result{Score: m.scores[job.Participant], Subscores: map[string]float64{}}
}

type mockRecorder struct {
	mu   sync.Mutex
	runs []model.Run
	err  error
}

func (m *mockRecorder) Record(_ context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockRecorder) recorded() []model.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Run(nil), m.runs...)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		g := &mockGrader{scores: map[string]float64{"alice": 0.9}}
		r := &mockRecorder{}
		fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		w := worker.NewInMemoryWorker(q, g, r, worker.WithName("w-test"), worker.WithClock(func() time.Time { return fixed }))

		convey.Convey("When a job is queued and the queue is closed", func() {
			ctx := context.Background()
			convey.So(q.Enqueue(ctx, model.Job{RunID: "run-1", Participant: "alice"}), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)
			w.Run(ctx)

			convey.Convey("Then the graded run is recorded", func() {
				runs := r.recorded()
				convey.So(runs, convey.ShouldHaveLength, 1)
				convey.So(runs[0].RunID, convey.ShouldEqual, "run-1")
				convey.So(runs[0].Status, convey.ShouldEqual, model.RunGraded)
				convey.So(runs[0].Result.Score, convey.ShouldEqual, 0.9)
				convey.So(runs[0].GradedAt, convey.ShouldEqual, fixed)
			})
		})

		convey.Convey("When recording fails", func() {
			r.err = errors.New("disk full")
			ctx := context.Background()
			convey.So(q.Enqueue(ctx, model.Job{RunID: "run-2", Participant: "bob"}), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the worker keeps running until the queue drains", func() {
				w.Run(ctx)
				convey.So(g.calls, convey.ShouldEqual, 1)
				convey.So(r.recorded(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not stop")
				}
				_ = q.Close()
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		g := &mockGrader{scores: map[string]float64{}}
		r := &mockRecorder{}
		p := worker.NewPool(4, q, g, r)
		convey.So(p.Size(), convey.ShouldEqual, 4)

		ctx := context.Background()
		p.Start(ctx)

		convey.Convey("When fifty jobs are queued and the queue is closed", func() {
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, model.Job{RunID: string(rune('A' + i)), Participant: "p"}), convey.ShouldBeNil)
			}
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then Wait returns after every job is recorded", func() {
				waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				convey.So(p.Wait(waitCtx), convey.ShouldBeNil)
				convey.So(r.recorded(), convey.ShouldHaveLength, 50)
			})
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		q := queue.NewInMemoryQueue()
		p := worker.NewPool(0, q, &mockGrader{}, &mockRecorder{})

		convey.Convey("Then one worker per CPU is created", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
