package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/posgrade/pkg/logger"
)

const statusGraded = "graded"

// Run discovers submissions under cfg.Root, submits them concurrently and,
// when cfg.Wait is set, waits for grading and checks the leaderboard.
func Run(ctx context.Context, cfg Config) (Report, error) {
	cfg = cfg.withDefaults()
	log := logger.Named("batch")
	start := time.Now()

	log.Info(ctx, "starting batch",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("root", cfg.Root),
		logger.Int("workers", cfg.Workers))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	subs, err := Discover(cfg.Root, cfg.SubmissionFile, cfg.Participant)
	if err != nil {
		return Report{}, err
	}
	if len(subs) == 0 {
		return Report{}, fmt.Errorf("%w under %s", ErrNoSubmissions, cfg.Root)
	}

	report := Report{Submitted: len(subs), Outcomes: submitAll(ctx, client, cfg.Workers, subs)}
	for _, o := range report.Outcomes {
		if o.Error == "" {
			report.Accepted++
		} else {
			report.Rejected++
		}
	}
	log.Info(ctx, "submission completed",
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", report.Rejected))

	if cfg.Wait && report.Accepted > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, cfg.WaitTimeout)
		err := waitGraded(waitCtx, client, cfg, report.Outcomes)
		cancel()
		if err != nil {
			return report, err
		}
		for _, o := range report.Outcomes {
			if o.Status == statusGraded {
				report.Graded++
			}
		}
		report.Leaderboard, err = client.Leaderboard(ctx, cfg.TopN)
		if err != nil {
			return report, fmt.Errorf("leaderboard retrieval failed: %w", err)
		}
		if err := Verify(report.Outcomes, report.Leaderboard); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	log.Info(ctx, "batch completed",
		logger.Int("graded", report.Graded),
		logger.Duration("duration", report.Duration))
	return report, nil
}

// submitAll posts every submission with at most workers requests in flight.
// Individual failures are recorded on the outcome and do not stop the batch.
func submitAll(ctx context.Context, client *Client, workers int, subs []Submission) []Outcome {
	outcomes := make([]Outcome, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range subs {
		g.Go(func() error {
			outcomes[i] = Outcome{Submission: s}
			status, err := client.Submit(gctx, s)
			if err != nil {
				outcomes[i].Error = err.Error()
				return nil
			}
			outcomes[i].Status = status
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// waitGraded polls every accepted run until it is graded.
func waitGraded(ctx context.Context, client *Client, cfg Config, outcomes []Outcome) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	var mu sync.Mutex
	for i := range outcomes {
		if outcomes[i].Error != "" {
			continue
		}
		g.Go(func() error {
			runID := outcomes[i].RunID
			ticker := time.NewTicker(cfg.PollInterval)
			defer ticker.Stop()
			for {
				info, err := client.Run(gctx, runID)
				var se *StatusError
				switch {
				case err == nil && info.Status == statusGraded && info.Result != nil:
					mu.Lock()
					outcomes[i].Status = info.Status
					outcomes[i].Score = info.Result.Score
					if kind, ok := info.Result.Details["error"].(string); ok {
						outcomes[i].Error = kind
					}
					mu.Unlock()
					return nil
				case err != nil && !errors.As(err, &se):
					return fmt.Errorf("poll run %s: %w", runID, err)
				}
				select {
				case <-gctx.Done():
					return fmt.Errorf("poll run %s: %w", runID, gctx.Err())
				case <-ticker.C:
				}
			}
		})
	}
	return g.Wait()
}
