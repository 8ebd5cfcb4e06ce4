// Package batch discovers submission directories under a root and submits
// them to a running grading service.
package batch

import (
	"errors"
	"time"
)

// Defaults.
const (
	DefaultBaseURL      = "http://localhost:8080"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
	DefaultTopN         = 10
)

// Errors.
var (
	ErrNoSubmissions = errors.New("no submissions found")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrInconsistent  = errors.New("leaderboard does not match graded runs")
)

// Config holds configuration for one batch.
type Config struct {
	BaseURL        string        // Base URL of the service
	Root           string        // Directory scanned for submissions; must match the service work root
	SubmissionFile string        // File that marks a submission directory
	Participant    string        // Participant used for submissions directly under Root
	Workers        int           // Number of concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	Wait           bool          // Poll until every run is graded and verify the leaderboard
	WaitTimeout    time.Duration // Upper bound for Wait
	PollInterval   time.Duration // Delay between run polls
	TopN           int           // Leaderboard entries fetched after grading
}

// Submission is one directory to be graded.
type Submission struct {
	Participant string `json:"participant"`
	WorkDir     string `json:"workdir"`
	RunID       string `json:"run_id"`
}

// Outcome records what happened to one submission.
type Outcome struct {
	Submission
	Status string  `json:"status"`
	Score  float64 `json:"score"`
	Error  string  `json:"error,omitempty"`
}

// Report summarizes a batch.
type Report struct {
	Submitted   int           `json:"submitted"`
	Accepted    int           `json:"accepted"`
	Rejected    int           `json:"rejected"`
	Graded      int           `json:"graded"`
	Outcomes    []Outcome     `json:"outcomes"`
	Leaderboard []Entry       `json:"leaderboard,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank        int     `json:"rank"`
	Participant string  `json:"participant"`
	Score       float64 `json:"score"`
	RunID       string  `json:"run_id"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.SubmissionFile == "" {
		out.SubmissionFile = "sol.csv"
	}
	if out.Participant == "" {
		out.Participant = "default"
	}
	if out.Workers < 1 {
		out.Workers = 4
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.WaitTimeout <= 0 {
		out.WaitTimeout = 5 * time.Minute
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.TopN < 1 {
		out.TopN = DefaultTopN
	}
	return out
}
