// Package grading runs one end-to-end evaluation of a predictions file
// against the ground-truth dataset.
package grading

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/posgrade/internal/domain/dataset"
	"github.com/okian/posgrade/internal/domain/model"
	"github.com/okian/posgrade/internal/domain/scoring"
	"github.com/okian/posgrade/internal/domain/split"
	"github.com/okian/posgrade/internal/domain/submission"
	"github.com/okian/posgrade/pkg/logger"
	"github.com/okian/posgrade/pkg/metrics"
)

// Defaults for file layout.
const (
	DefaultSubmissionFile  = "sol.csv"
	DefaultGroundTruthFile = "nba_player_stats.csv"
	DefaultLabelColumn     = "Pos"
)

// Grader evaluates a predictions file. It holds only configuration, so a
// single Grader may be shared by concurrent callers as long as each uses its
// own working directory.
type Grader struct {
	workDir         string
	submissionFile  string
	groundTruthFile string
	labelColumn     string
	scorer          scoring.Scorer
	split           split.Reconstructor
	log             logger.Logger
}

// New creates a Grader reading from the current directory by default.
func New(opts ...Option) *Grader {
	g := &Grader{
		workDir:         ".",
		submissionFile:  DefaultSubmissionFile,
		groundTruthFile: DefaultGroundTruthFile,
		labelColumn:     DefaultLabelColumn,
		scorer:          scoring.NewWeightedScorer(),
		split:           split.NewReconstructor(),
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WorkDir returns the default working directory.
func (g *Grader) WorkDir() string {
	return g.workDir
}

// SubmissionFile returns the configured predictions file name.
func (g *Grader) SubmissionFile() string {
	return g.submissionFile
}

// Grade evaluates the files in the configured working directory.
// The transcript is accepted for interface compatibility and does not
// influence the result.
func (g *Grader) Grade(ctx context.Context, transcript string) model.Result {
	return g.GradeDir(ctx, g.workDir, transcript)
}

// GradeDir evaluates the files found in dir. It never returns an error:
// every failure is folded into a zero-score Result tagged in Details["error"].
func (g *Grader) GradeDir(ctx context.Context, dir, _ string) (res model.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = processingFailure(fmt.Errorf("panic: %v", r))
		}
		g.observe(ctx, dir, res, time.Since(start))
	}()
	return g.evaluate(ctx, dir)
}

func (g *Grader) evaluate(ctx context.Context, dir string) model.Result {
	sub, err := submission.Load(filepath.Join(dir, g.submissionFile))
	if err != nil {
		return g.submissionFailure(err)
	}

	truth, err := dataset.Load(filepath.Join(dir, g.groundTruthFile))
	if err != nil {
		return processingFailure(err)
	}
	labels, err := truth.Column(g.labelColumn)
	if err != nil {
		return processingFailure(err)
	}

	res, err := g.scorer.Score(ctx, scoring.Input{
		TotalRows: truth.Len(),
		Expected:  g.split.ExpectedHeldOut(labels),
		Actual:    sub.Actual,
		Predicted: sub.Predicted,
	})
	if err != nil {
		return processingFailure(err)
	}
	res.Details["actual_column"] = sub.Columns.Actual
	res.Details["predicted_column"] = sub.Columns.Predicted
	return res
}

func (g *Grader) submissionFailure(err error) model.Result {
	var schemaErr *submission.SchemaError
	switch {
	case errors.Is(err, submission.ErrMissingArtifact):
		return model.Failed(model.ErrorMissingPredictionsFile,
			fmt.Sprintf("%s file not found. Please save your predictions to %s", g.submissionFile, g.submissionFile),
			nil)
	case errors.As(err, &schemaErr):
		return model.Failed(model.ErrorMissingColumns,
			fmt.Sprintf("%s must contain columns with 'actual' and 'predicted' in their names. Found columns: %s",
				g.submissionFile, quoteList(schemaErr.Found)),
			map[string]any{"columns": schemaErr.Found})
	default:
		return processingFailure(err)
	}
}

func processingFailure(err error) model.Result {
	return model.Failed(model.ErrorProcessing,
		"Error processing predictions: "+err.Error(),
		map[string]any{"exception": err.Error()})
}

func (g *Grader) observe(ctx context.Context, dir string, res model.Result, elapsed time.Duration) {
	metrics.RecordGrading(res.Outcome(), res.Score, res.Subscores, float64(elapsed.Microseconds())/1000)
	fields := []logger.Field{
		logger.String("dir", dir),
		logger.String("outcome", res.Outcome()),
		logger.Float64("score", res.Score),
		logger.Duration("elapsed", elapsed),
	}
	if res.ErrorKind() != "" {
		g.log.Warn(ctx, "grading failed", append(fields, logger.String("feedback", res.Feedback))...)
		return
	}
	g.log.Info(ctx, "grading complete", fields...)
}

// Fingerprint returns a digest of the inputs GradeDir would read from dir.
// Identical fingerprints yield identical results for the same Grader.
func (g *Grader) Fingerprint(dir string) (string, error) {
	h := sha256.New()
	for _, name := range []string{g.submissionFile, g.groundTruthFile} {
		if err := hashFile(h, filepath.Join(dir, name)); err != nil {
			return "", err
		}
	}
	fmt.Fprintf(h, "label=%s;drop=%t", g.labelColumn, g.split.LegacyLeadingDrop())
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		_, err = io.WriteString(w, "missing:"+filepath.Base(path)+";")
		return err
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	_, err = io.WriteString(w, ";"+strconv.FormatInt(n, 10)+";")
	return err
}

func quoteList(items []string) string {
	out := "["
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += strconv.Quote(s)
	}
	return out + "]"
}
