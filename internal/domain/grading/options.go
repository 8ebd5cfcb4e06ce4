package grading

import (
	"github.com/okian/posgrade/internal/domain/scoring"
	"github.com/okian/posgrade/internal/domain/split"
	"github.com/okian/posgrade/pkg/logger"
)

// Option applies a configuration option to the Grader.
type Option func(*Grader)

// WithWorkDir sets the directory Grade reads both files from.
func WithWorkDir(dir string) Option {
	return func(g *Grader) {
		if dir != "" {
			g.workDir = dir
		}
	}
}

// WithSubmissionFile sets the predictions file name, relative to the work dir.
func WithSubmissionFile(name string) Option {
	return func(g *Grader) {
		if name != "" {
			g.submissionFile = name
		}
	}
}

// WithGroundTruthFile sets the ground-truth file name, relative to the work dir.
func WithGroundTruthFile(name string) Option {
	return func(g *Grader) {
		if name != "" {
			g.groundTruthFile = name
		}
	}
}

// WithLabelColumn sets the ground-truth column holding the class label.
func WithLabelColumn(name string) Option {
	return func(g *Grader) {
		if name != "" {
			g.labelColumn = name
		}
	}
}

// WithScorer replaces the default weighted scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(g *Grader) {
		if s != nil {
			g.scorer = s
		}
	}
}

// WithReconstructor replaces the default split reconstructor.
func WithReconstructor(r split.Reconstructor) Option {
	return func(g *Grader) {
		g.split = r
	}
}

// WithLogger sets the logger used for per-grading log lines.
func WithLogger(l logger.Logger) Option {
	return func(g *Grader) {
		if l != nil {
			g.log = l
		}
	}
}
