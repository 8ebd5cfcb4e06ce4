// Package scoring turns a validated submission and the reconstructed split
// into a weighted grading result.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/posgrade/internal/domain/model"
	"github.com/okian/posgrade/internal/domain/split"
)

// Sub-score names.
const (
	TestSizeCorrect        = "test_size_correct"
	CorrectTestSplit       = "correct_test_split"
	ClassificationAccuracy = "classification_accuracy"
)

// Default scoring configuration constants.
const (
	defaultSizeTolerance  = 2
	defaultBonusThreshold = 0.95
	sizePenaltyScore      = 0.5
	successFeedback       = "Task completed successfully!"
	feedbackSeparator     = " | "
)

// Weight binds a sub-score to its share of the final score.
type Weight struct {
	Name   string
	Weight float64
}

// DefaultWeights is the weighting table, in feedback order.
func DefaultWeights() []Weight {
	return []Weight{
		{Name: TestSizeCorrect, Weight: 0.2},
		{Name: CorrectTestSplit, Weight: 0.3},
		{Name: ClassificationAccuracy, Weight: 0.5},
	}
}

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithWeights overrides the weight of known sub-scores. Unknown names and
// negative weights are ignored.
func WithWeights(weights map[string]float64) Option {
	return func(s *WeightedScorer) {
		for i := range s.weights {
			if w, ok := weights[s.weights[i].Name]; ok && w >= 0 {
				s.weights[i].Weight = w
			}
		}
	}
}

// WithSizeTolerance sets how many rows the submission may differ from the
// expected test size before the size sub-score is penalized.
func WithSizeTolerance(rows int) Option {
	return func(s *WeightedScorer) {
		if rows >= 0 {
			s.sizeTolerance = rows
		}
	}
}

// WithBonusThreshold sets the level every sub-score must reach for the
// accuracy bonus to apply.
func WithBonusThreshold(threshold float64) Option {
	return func(s *WeightedScorer) {
		if threshold > 0 && threshold <= 1 {
			s.bonusThreshold = threshold
		}
	}
}

// Input carries everything the scorer compares.
type Input struct {
	// TotalRows is the ground-truth row count.
	TotalRows int
	// Expected is the reconstructed held-out label sequence.
	Expected []string
	// Actual and Predicted are the submission's resolved columns.
	Actual    []string
	Predicted []string
}

// Scorer computes a grading result from an input.
type Scorer interface {
	Score(ctx context.Context, in Input) (model.Result, error)
}

// WeightedScorer implements Scorer with the fixed three-part weighting.
type WeightedScorer struct {
	weights        []Weight
	sizeTolerance  int
	bonusThreshold float64
}

// NewWeightedScorer creates a scorer with the default table.
func NewWeightedScorer(opts ...Option) *WeightedScorer {
	s := &WeightedScorer{
		weights:        DefaultWeights(),
		sizeTolerance:  defaultSizeTolerance,
		bonusThreshold: defaultBonusThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns a copy of the weighting table.
func (s *WeightedScorer) Weights() []Weight {
	return append([]Weight(nil), s.weights...)
}

// Score compares the submission against the expected split.
func (s *WeightedScorer) Score(ctx context.Context, in Input) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}

	expectedSize := split.ExpectedTestSize(in.TotalRows)
	submitted := len(in.Actual)
	sub := make(map[string]float64, len(s.weights))
	details := map[string]any{
		"total_rows":             in.TotalRows,
		"split_boundary":         split.Boundary(in.TotalRows),
		"expected_test_size":     expectedSize,
		"expected_held_out_size": len(in.Expected),
		"test_set_size":          submitted,
	}
	var notes []string

	sub[TestSizeCorrect] = SizeScore(submitted, expectedSize, s.sizeTolerance)
	if sub[TestSizeCorrect] < 1 {
		notes = append(notes, fmt.Sprintf("Test set size: %d, expected: ~%d", submitted, expectedSize))
	}

	sub[CorrectTestSplit] = SplitScore(in.Actual, in.Expected)
	if sub[CorrectTestSplit] < 1 {
		notes = append(notes, "The 'actual' values don't match the expected test set (last 20% of rows)")
	}

	acc, correct, ok := Accuracy(in.Actual, in.Predicted)
	sub[ClassificationAccuracy] = acc
	if ok {
		details["accuracy"] = acc
		details["classification_error"] = 1 - acc
		details["correct_predictions"] = correct
		details["total_predictions"] = submitted
		if acc < 1 {
			notes = append(notes, fmt.Sprintf("Classification accuracy: %.3f (error %.3f)", acc, 1-acc))
		}
	} else {
		notes = append(notes, "Could not calculate accuracy due to mismatched array lengths")
	}

	final := Combine(sub, s.weights)
	final = ApplyBonus(final, sub, acc, s.bonusThreshold)

	weights := make(map[string]float64, len(s.weights))
	for _, w := range s.weights {
		weights[w.Name] = w.Weight
	}

	feedback := successFeedback
	if len(notes) > 0 {
		feedback = strings.Join(notes, feedbackSeparator)
	}

	return model.Result{
		Score:     final,
		Subscores: sub,
		Weights:   weights,
		Feedback:  feedback,
		Details:   details,
	}, nil
}

// SizeScore is 1 when submitted is within tolerance rows of expected, else 0.5.
func SizeScore(submitted, expected, tolerance int) float64 {
	diff := submitted - expected
	if diff < 0 {
		diff = -diff
	}
	if diff <= tolerance {
		return 1
	}
	return sizePenaltyScore
}

// SplitScore is 1 when actual equals expected element-wise, else 0.
// A length mismatch is 0 without comparing values.
func SplitScore(actual, expected []string) float64 {
	if len(actual) != len(expected) {
		return 0
	}
	for i := range actual {
		if actual[i] != expected[i] {
			return 0
		}
	}
	return 1
}

// Accuracy returns the share of rows where predicted equals actual.
// ok is false, and the accuracy 0, unless both sequences have the same
// non-zero length.
func Accuracy(actual, predicted []string) (acc float64, correct int, ok bool) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0, 0, false
	}
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual)), correct, true
}

// Combine returns the weighted sum of sub-scores, clamped to [0,1].
func Combine(sub map[string]float64, weights []Weight) float64 {
	var total float64
	for _, w := range weights {
		total += sub[w.Name] * w.Weight
	}
	return clamp(total)
}

// ApplyBonus raises final to accuracy when every sub-score reaches threshold.
// It never lowers the score.
func ApplyBonus(final float64, sub map[string]float64, accuracy, threshold float64) float64 {
	if len(sub) == 0 {
		return final
	}
	for _, v := range sub {
		if v < threshold {
			return final
		}
	}
	return clamp(math.Max(final, accuracy))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
