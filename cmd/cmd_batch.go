package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/posgrade/internal/batch"
)

var batchFlags struct {
	url         string
	root        string
	participant string
	workers     int
	timeout     time.Duration
	wait        bool
	waitTimeout time.Duration
	top         int
	output      string
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Submit every submission directory under a root to a running service",
	Long: `Walks --root for directories holding the submission file and posts one run per
directory. The first path element below the root names the participant. The
root must be the service's work_dir.`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.url, "url", batch.DefaultBaseURL, "Base URL of the service")
	f.StringVar(&batchFlags.root, "root", "", "Directory to scan (default: work_dir)")
	f.StringVar(&batchFlags.participant, "participant", "", "Participant for a submission directly in the root")
	f.IntVar(&batchFlags.workers, "workers", 4, "Concurrent submissions")
	f.DurationVar(&batchFlags.timeout, "timeout", batch.DefaultTimeout, "HTTP request timeout")
	f.BoolVar(&batchFlags.wait, "wait", false, "Wait for grading and verify the leaderboard")
	f.DurationVar(&batchFlags.waitTimeout, "wait-timeout", 5*time.Minute, "Upper bound for --wait")
	f.IntVar(&batchFlags.top, "top", batch.DefaultTopN, "Leaderboard entries to fetch")
	f.StringVarP(&batchFlags.output, "output", "o", formatText, "Output format: text, json or yaml")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	root := batchFlags.root
	if root == "" {
		root = cfg.WorkDir
	}
	report, err := batch.Run(cmd.Context(), batch.Config{
		BaseURL:        batchFlags.url,
		Root:           root,
		SubmissionFile: cfg.SubmissionFile,
		Participant:    batchFlags.participant,
		Workers:        batchFlags.workers,
		Timeout:        batchFlags.timeout,
		Wait:           batchFlags.wait,
		WaitTimeout:    batchFlags.waitTimeout,
		TopN:           batchFlags.top,
	})
	if err != nil && report.Submitted == 0 {
		return err
	}
	if rerr := render(cmd.OutOrStdout(), batchFlags.output, report, func(w io.Writer) error { return writeReport(w, report) }); rerr != nil {
		return rerr
	}
	return err
}
