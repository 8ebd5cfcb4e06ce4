package batch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/posgrade/internal/adapters/http/api"
	service "github.com/okian/posgrade/internal/app"
	"github.com/okian/posgrade/internal/batch"
	"github.com/okian/posgrade/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var positions = []string{"PG", "SG", "SF", "PF", "C"}

// writeRunDir writes a 100-row ground truth and a submission with wrong
// incorrect predictions under root/rel.
func writeRunDir(t *testing.T, root, rel string, wrong int) {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var truth, sol strings.Builder
	truth.WriteString("Player,Pos,PTS\n")
	sol.WriteString("Player name,player's actual position,predicted position\n")
	for i := 0; i < 100; i++ {
		pos := positions[i%len(positions)]
		fmt.Fprintf(&truth, "Player %d,%s,%d\n", i, pos, i)
		if i > 80 {
			pred := pos
			if i-81 < wrong {
				pred = "XX"
			}
			fmt.Fprintf(&sol, "Player %d,%s,%s\n", i, pos, pred)
		}
	}
	for file, body := range map[string]string{
		"nba_player_stats.csv": truth.String(),
		"sol.csv":              sol.String(),
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func startServer(t *testing.T, root string) *httptest.Server {
	t.Helper()
	svc := service.New(service.WithWorkRoot(root), service.WithWorkerCount(2))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv
}

func TestDiscover(t *testing.T) {
	Convey("Given a root with nested submissions", t, func() {
		root := t.TempDir()
		writeRunDir(t, root, "bob/run-2", 0)
		writeRunDir(t, root, "alice/run-1", 0)
		writeRunDir(t, root, "carol", 0)
		So(os.MkdirAll(filepath.Join(root, "empty", "dir"), 0o755), ShouldBeNil)

		subs, err := batch.Discover(root, "sol.csv", "solo")

		Convey("Then each submission directory is found in order", func() {
			So(err, ShouldBeNil)
			So(subs, ShouldHaveLength, 3)
			So(subs[0].WorkDir, ShouldEqual, "alice/run-1")
			So(subs[0].Participant, ShouldEqual, "alice")
			So(subs[1].Participant, ShouldEqual, "bob")
			So(subs[2].WorkDir, ShouldEqual, "carol")
			So(subs[2].Participant, ShouldEqual, "carol")
			So(subs[0].RunID, ShouldNotEqual, subs[1].RunID)
		})
	})

	Convey("Given a submission at the root itself", t, func() {
		root := t.TempDir()
		writeRunDir(t, root, ".", 0)

		subs, err := batch.Discover(root, "sol.csv", "solo")

		Convey("Then the fallback participant is used", func() {
			So(err, ShouldBeNil)
			So(subs, ShouldHaveLength, 1)
			So(subs[0].WorkDir, ShouldEqual, "")
			So(subs[0].Participant, ShouldEqual, "solo")
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service and a root of submissions", t, func() {
		root := t.TempDir()
		writeRunDir(t, root, "alice/1", 4)
		writeRunDir(t, root, "alice/2", 0)
		writeRunDir(t, root, "bob/1", 2)
		srv := startServer(t, root)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When the batch runs and waits", func() {
			report, err := batch.Run(ctx, batch.Config{
				BaseURL:      srv.URL,
				Root:         root,
				Workers:      2,
				Wait:         true,
				PollInterval: 10 * time.Millisecond,
			})

			Convey("Then every run is graded and ranked", func() {
				So(err, ShouldBeNil)
				So(report.Submitted, ShouldEqual, 3)
				So(report.Accepted, ShouldEqual, 3)
				So(report.Graded, ShouldEqual, 3)
				So(report.Leaderboard, ShouldHaveLength, 2)
				So(report.Leaderboard[0].Participant, ShouldEqual, "alice")
				So(report.Leaderboard[0].Score, ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given an empty root", t, func() {
		root := t.TempDir()
		srv := startServer(t, root)

		_, err := batch.Run(context.Background(), batch.Config{BaseURL: srv.URL, Root: root})

		Convey("Then the batch reports no submissions", func() {
			So(errors.Is(err, batch.ErrNoSubmissions), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable service", t, func() {
		_, err := batch.Run(context.Background(), batch.Config{
			BaseURL: "http://127.0.0.1:1",
			Root:    t.TempDir(),
			Timeout: time.Second,
		})

		Convey("Then the health check fails", func() {
			So(errors.Is(err, batch.ErrUnhealthy), ShouldBeTrue)
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given graded outcomes", t, func() {
		outcomes := []batch.Outcome{
			{Submission: batch.Submission{Participant: "alice", RunID: "a1"}, Status: "graded", Score: 0.8},
			{Submission: batch.Submission{Participant: "alice", RunID: "a2"}, Status: "graded", Score: 0.9},
			{Submission: batch.Submission{Participant: "bob", RunID: "b1"}, Status: "graded", Score: 0.5},
		}

		Convey("Then a consistent leaderboard passes", func() {
			err := batch.Verify(outcomes, []batch.Entry{
				{Rank: 1, Participant: "alice", Score: 0.9},
				{Rank: 2, Participant: "bob", Score: 0.7},
			})
			So(err, ShouldBeNil)
		})

		Convey("Then a leaderboard below the batch best fails", func() {
			err := batch.Verify(outcomes, []batch.Entry{{Rank: 1, Participant: "alice", Score: 0.8}})
			So(errors.Is(err, batch.ErrInconsistent), ShouldBeTrue)
		})

		Convey("Then an unsorted leaderboard fails", func() {
			err := batch.Verify(outcomes, []batch.Entry{
				{Rank: 1, Participant: "bob", Score: 0.5},
				{Rank: 2, Participant: "alice", Score: 0.9},
			})
			So(errors.Is(err, batch.ErrInconsistent), ShouldBeTrue)
		})
	})
}
