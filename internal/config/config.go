// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of the defaults.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/posgrade/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WorkDir is the root every submission directory is resolved against.
	WorkDir string `koanf:"work_dir"`

	// SubmissionFile and GroundTruthFile name the two artifacts inside a
	// submission directory.
	SubmissionFile  string `koanf:"submission_file"`
	GroundTruthFile string `koanf:"ground_truth_file"`

	// LabelColumn is the ground-truth column holding player positions.
	LabelColumn string `koanf:"label_column"`

	// QueueSize bounds the in-memory run queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of grading workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many run IDs are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CacheSize bounds the result cache. Zero disables it.
	CacheSize int `koanf:"cache_size"`

	// ArchivePath is the bbolt file runs are persisted to. Empty keeps runs in memory.
	ArchivePath string `koanf:"archive_path"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	Scoring Scoring `koanf:"scoring"`
	Split   Split   `koanf:"split"`
}

// Scoring configures the weighted scorer.
type Scoring struct {
	Weights        map[string]float64 `koanf:"weights"`
	SizeTolerance  int                `koanf:"size_tolerance"`
	BonusThreshold float64            `koanf:"bonus_threshold"`
}

// Split configures held-out set reconstruction.
type Split struct {
	// LegacyLeadingDrop skips the first row after the split boundary.
	LegacyLeadingDrop bool `koanf:"legacy_leading_drop"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	weights := make(map[string]float64)
	for _, w := range scoring.DefaultWeights() {
		weights[w.Name] = w.Weight
	}
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8080",
		WorkDir:             ".",
		SubmissionFile:      "sol.csv",
		GroundTruthFile:     "nba_player_stats.csv",
		LabelColumn:         "Pos",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		CacheSize:           1024,
		MaxLeaderboardLimit: 100,
		Scoring: Scoring{
			Weights:        weights,
			SizeTolerance:  2,
			BonusThreshold: 0.95,
		},
		Split: Split{LegacyLeadingDrop: true},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SubmissionFile == "" || c.GroundTruthFile == "":
		return fmt.Errorf("%w: artifact file names must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.LabelColumn) == "":
		return fmt.Errorf("%w: label_column must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize < 0 || c.CacheSize < 0:
		return fmt.Errorf("%w: dedupe_size and cache_size must not be negative", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return c.Scoring.validate()
}

func (s Scoring) validate() error {
	if s.SizeTolerance < 0 {
		return fmt.Errorf("%w: scoring.size_tolerance must not be negative", ErrInvalidConfig)
	}
	if s.BonusThreshold < 0 || s.BonusThreshold > 1 {
		return fmt.Errorf("%w: scoring.bonus_threshold must be within [0,1]", ErrInvalidConfig)
	}
	known := make(map[string]bool)
	for _, w := range scoring.DefaultWeights() {
		known[w.Name] = true
	}
	var sum float64
	for name, w := range s.Weights {
		if !known[name] {
			return fmt.Errorf("%w: unknown scoring weight %q", ErrInvalidConfig, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: scoring weight %q is negative", ErrInvalidConfig, name)
		}
		sum += w
	}
	if len(s.Weights) > 0 && sum == 0 {
		return fmt.Errorf("%w: scoring weights sum to zero", ErrInvalidConfig)
	}
	return nil
}
