package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/posgrade/internal/adapters/archive"
	"github.com/okian/posgrade/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleRun(id string, score float64) model.Run {
	return model.Run{
		Job: model.Job{
			RunID:       id,
			Participant: "team-" + id,
			WorkDir:     "/tmp/" + id,
			SubmittedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		Status: model.RunGraded,
		Result: &model.Result{
			Score:     score,
			Subscores: map[string]float64{"classification_accuracy": score},
			Weights:   map[string]float64{"classification_accuracy": 0.5},
			Feedback:  "Task completed successfully!",
		},
		GradedAt: time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC),
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh archive", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "runs.db")
		s, err := archive.Open(path)
		So(err, ShouldBeNil)
		defer s.Close()

		Convey("When a run is stored", func() {
			So(s.Put(ctx, sampleRun("a", 0.8)), ShouldBeNil)

			Convey("Then it can be read back", func() {
				run, err := s.Get(ctx, "a")
				So(err, ShouldBeNil)
				So(run.Participant, ShouldEqual, "team-a")
				So(run.Status, ShouldEqual, model.RunGraded)
				So(run.Result.Score, ShouldEqual, 0.8)
				So(run.GradedAt.Equal(sampleRun("a", 0).GradedAt), ShouldBeTrue)
			})

			Convey("And storing it again replaces it", func() {
				So(s.Put(ctx, sampleRun("a", 0.9)), ShouldBeNil)
				run, _ := s.Get(ctx, "a")
				So(run.Result.Score, ShouldEqual, 0.9)
				n, err := s.Count()
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When an unknown run is requested", func() {
			_, err := s.Get(ctx, "missing")
			So(errors.Is(err, archive.ErrNotFound), ShouldBeTrue)
		})

		Convey("When several runs are iterated", func() {
			for _, id := range []string{"c", "a", "b"} {
				So(s.Put(ctx, sampleRun(id, 0.5)), ShouldBeNil)
			}
			var ids []string
			err := s.ForEach(ctx, func(r model.Run) error {
				ids = append(ids, r.RunID)
				return nil
			})

			Convey("Then they are visited in key order", func() {
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When the callback fails", func() {
			So(s.Put(ctx, sampleRun("a", 0.5)), ShouldBeNil)
			stop := errors.New("stop")
			err := s.ForEach(ctx, func(model.Run) error { return stop })
			So(errors.Is(err, stop), ShouldBeTrue)
		})

		Convey("When the archive has been closed", func() {
			So(s.Put(ctx, sampleRun("a", 0.5)), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			Convey("Then every operation reports it is closed", func() {
				So(errors.Is(s.Put(ctx, sampleRun("b", 0.5)), archive.ErrClosed), ShouldBeTrue)
				_, err := s.Get(ctx, "a")
				So(errors.Is(err, archive.ErrClosed), ShouldBeTrue)
				err = s.ForEach(ctx, func(model.Run) error { return nil })
				So(errors.Is(err, archive.ErrClosed), ShouldBeTrue)
				_, err = s.Count()
				So(errors.Is(err, archive.ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given an archive that is reopened", t, func() {
		path := filepath.Join(t.TempDir(), "runs.db")
		s, err := archive.Open(path)
		So(err, ShouldBeNil)
		So(s.Put(ctx, sampleRun("keep", 0.7)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		reopened, err := archive.Open(path)
		So(err, ShouldBeNil)
		defer reopened.Close()

		Convey("Then earlier runs are still there", func() {
			run, err := reopened.Get(ctx, "keep")
			So(err, ShouldBeNil)
			So(run.Result.Score, ShouldEqual, 0.7)
		})
	})
}
