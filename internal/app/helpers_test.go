package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	service "github.com/okian/posgrade/internal/app"
	"github.com/okian/posgrade/internal/domain/model"
)

var positions = []string{"PG", "SG", "SF", "PF", "C"}

// writeRunDir creates root/name with a 100-row ground truth and a submission
// of the expected held-out rows. wrong predictions are placed first.
func writeRunDir(t *testing.T, root, name string, wrong int) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	var truth strings.Builder
	truth.WriteString("Player,Pos,PTS\n")
	labels := make([]string, 100)
	for i := range labels {
		labels[i] = positions[i%len(positions)]
		fmt.Fprintf(&truth, "Player %d,%s,%d\n", i, labels[i], i)
	}

	var sol strings.Builder
	sol.WriteString("Player name,player's actual position,predicted position\n")
	for i, j := 0, 81; j < len(labels); i, j = i+1, j+1 {
		pred := labels[j]
		if i < wrong {
			pred = "XX"
		}
		fmt.Fprintf(&sol, "Player %d,%s,%s\n", j, labels[j], pred)
	}

	for file, body := range map[string]string{
		"nba_player_stats.csv": truth.String(),
		"sol.csv":              sol.String(),
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return name
}

func waitGraded(t *testing.T, svc *service.Service, runID string) model.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := svc.Run(context.Background(), runID)
		if err == nil && run.Status == model.RunGraded {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s was not graded in time", runID)
	return model.Run{}
}
