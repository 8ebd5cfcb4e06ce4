package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/posgrade/internal/app"
	"github.com/okian/posgrade/internal/domain/model"
	"github.com/okian/posgrade/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkRoot(t.TempDir()), service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it has not been started", func() {
			_, err := svc.Submit(ctx, model.RunRequest{Participant: "alice"})
			So(errors.Is(err, model.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When it is started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Grade(t *testing.T) {
	Convey("Given a started service over a work root", t, func() {
		root := t.TempDir()
		svc := service.New(service.WithWorkRoot(root), service.WithWorkerCount(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a perfect submission is graded synchronously", func() {
			dir := writeRunDir(t, root, "perfect", 0)
			res, err := svc.Grade(ctx, dir, "")

			Convey("Then it scores 1", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldEqual, 1.0)
				So(res.ErrorKind(), ShouldEqual, "")
			})

			Convey("And grading it again returns an identical result", func() {
				again, err := svc.Grade(ctx, dir, "other transcript")
				So(err, ShouldBeNil)
				So(again, ShouldResemble, res)
			})
		})

		Convey("When the same directory is graded concurrently", func() {
			dir := writeRunDir(t, root, "busy", 3)
			var wg sync.WaitGroup
			scores := make([]float64, 16)
			for i := range scores {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, _ := svc.Grade(ctx, dir, "")
					scores[i] = res.Score
				}(i)
			}
			wg.Wait()

			Convey("Then every caller sees the same score", func() {
				for _, s := range scores {
					So(s, ShouldEqual, scores[0])
				}
			})
		})

		Convey("When the caller's context is already cancelled", func() {
			uncached := service.New(service.WithWorkRoot(root), service.WithWorkerCount(1), service.WithCacheSize(0))
			So(uncached.Start(ctx), ShouldBeNil)
			defer uncached.Stop(ctx)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			res, err := uncached.Grade(cancelled, writeRunDir(t, root, "gone", 0), "")

			Convey("Then the shared evaluation still completes", func() {
				So(err, ShouldBeNil)
				So(res.ErrorKind(), ShouldEqual, "")
				So(res.Score, ShouldEqual, 1.0)
			})
		})

		Convey("When the directory has no predictions", func() {
			res, err := svc.Grade(ctx, "", "")
			So(err, ShouldBeNil)
			So(res.ErrorKind(), ShouldEqual, model.ErrorMissingPredictionsFile)
		})

		Convey("When the workdir escapes the root", func() {
			_, err := svc.Grade(ctx, "../elsewhere", "")
			So(errors.Is(err, model.ErrInvalidJob), ShouldBeTrue)
			_, err = svc.Grade(ctx, "/etc", "")
			So(errors.Is(err, model.ErrInvalidJob), ShouldBeTrue)
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		root := t.TempDir()
		ids := 0
		svc := service.New(
			service.WithWorkRoot(root),
			service.WithWorkerCount(2),
			service.WithIDGenerator(func() string { ids++; return fmt.Sprintf("gen-%d", ids) }),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When runs are submitted for two participants", func() {
			good := writeRunDir(t, root, "good", 0)
			weak := writeRunDir(t, root, "weak", 10)

			a, err := svc.Submit(ctx, model.RunRequest{Participant: "alice", WorkDir: good})
			So(err, ShouldBeNil)
			So(a.Status, ShouldEqual, model.RunQueued)
			So(a.RunID, ShouldEqual, "gen-1")

			b, err := svc.Submit(ctx, model.RunRequest{RunID: "bob-1", Participant: "bob", WorkDir: weak})
			So(err, ShouldBeNil)
			So(b.RunID, ShouldEqual, "bob-1")

			ga := waitGraded(t, svc, a.RunID)
			gb := waitGraded(t, svc, b.RunID)

			Convey("Then both runs are graded", func() {
				So(ga.Result.Score, ShouldEqual, 1.0)
				So(gb.Result.Score, ShouldBeLessThan, 1.0)
				So(gb.GradedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then the leaderboard ranks them", func() {
				top, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
				So(top[0].Participant, ShouldEqual, "alice")
				So(top[0].RunID, ShouldEqual, "gen-1")

				e, err := svc.Rank(ctx, "bob")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
			})

			Convey("Then a repeated run ID is rejected", func() {
				_, err := svc.Submit(ctx, model.RunRequest{RunID: "bob-1", Participant: "bob", WorkDir: weak})
				So(errors.Is(err, model.ErrDuplicateRun), ShouldBeTrue)
			})
		})

		Convey("When the request is invalid", func() {
			_, err := svc.Submit(ctx, model.RunRequest{Participant: "  "})
			So(errors.Is(err, model.ErrInvalidJob), ShouldBeTrue)
			_, err = svc.Submit(ctx, model.RunRequest{Participant: "eve", WorkDir: "../../etc"})
			So(errors.Is(err, model.ErrInvalidJob), ShouldBeTrue)
		})

		Convey("When an unknown run or participant is requested", func() {
			_, err := svc.Run(ctx, "nope")
			So(errors.Is(err, model.ErrRunNotFound), ShouldBeTrue)
			_, err = svc.Rank(ctx, "nobody")
			So(errors.Is(err, model.ErrParticipantNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose queue holds a single run", t, func() {
		root := t.TempDir()
		svc := service.New(service.WithWorkRoot(root), service.WithQueueSize(1), service.WithWorkerCount(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When many runs are submitted at once", func() {
			var rejected, accepted int
			for i := 0; i < 200; i++ {
				_, err := svc.Submit(ctx, model.RunRequest{Participant: "p", RunID: fmt.Sprintf("r-%d", i)})
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, model.ErrBackpressure):
					rejected++
				}
			}

			Convey("Then the overflow is rejected with backpressure", func() {
				So(accepted+rejected, ShouldEqual, 200)
				So(accepted, ShouldBeGreaterThan, 0)
			})
		})
	})
}
