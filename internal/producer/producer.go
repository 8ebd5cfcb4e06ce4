// Package producer builds a reference submission: it fits a k-NN position
// classifier on the training rows of the stats table and writes predictions
// for the held-out rows in the layout the grader reads.
package producer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/evaluation"
	"github.com/sjwhitworth/golearn/knn"

	"github.com/okian/posgrade/internal/domain/dataset"
	"github.com/okian/posgrade/internal/domain/split"
	"github.com/okian/posgrade/pkg/logger"
)

// Defaults.
const (
	DefaultNeighbours  = 5
	DefaultLabelColumn = "Pos"
	DefaultNameColumn  = "Player"
	minRows            = 10
)

// Output header written to the submission file.
var outputHeader = []string{"Player name", "player's actual position", "predicted position"} //nolint:gochecknoglobals // fixed layout

// Summary describes one produced submission.
type Summary struct {
	Rows     int      `json:"rows" yaml:"rows"`
	Train    int      `json:"train" yaml:"train"`
	Test     int      `json:"test" yaml:"test"`
	Features []string `json:"features" yaml:"features"`
	K        int      `json:"k" yaml:"k"`
	Accuracy float64  `json:"accuracy" yaml:"accuracy"`
	Output   string   `json:"output" yaml:"output"`
}

// Producer runs the fixed load, clean, split, fit, predict and write pipeline.
type Producer struct {
	k           int
	labelColumn string
	nameColumn  string
	split       split.Reconstructor
	logger      logger.Logger
}

// New creates a Producer.
func New(opts ...Option) *Producer {
	p := &Producer{
		k:           DefaultNeighbours,
		labelColumn: DefaultLabelColumn,
		nameColumn:  DefaultNameColumn,
		split:       split.NewReconstructor(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Produce reads the stats table at dataPath and writes predictions to outPath.
func (p *Producer) Produce(ctx context.Context, dataPath, outPath string) (Summary, error) {
	if dataPath == "" || outPath == "" {
		return Summary{}, fmt.Errorf("%w: data and output paths are required", ErrInvalidArgs)
	}
	ds, err := dataset.Load(dataPath)
	if err != nil {
		return Summary{}, err
	}
	if ds.Len() < minRows {
		return Summary{}, fmt.Errorf("%w: %d rows, need at least %d", ErrTooFewRows, ds.Len(), minRows)
	}
	labels, err := ds.Column(p.labelColumn)
	if err != nil {
		return Summary{}, err
	}
	for i, l := range labels {
		labels[i] = strings.TrimSpace(l)
	}

	features := numericFeatures(ds, p.labelColumn, p.nameColumn)
	if len(features.names) == 0 {
		return Summary{}, ErrNoFeatures
	}
	train := p.split.TrainingIndices(labels)
	test := p.split.HeldOutIndices(labels)
	switch {
	case len(train) == 0:
		return Summary{}, ErrNoTraining
	case len(test) == 0:
		return Summary{}, ErrNoHeldOut
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	features.standardize(train)

	k := min(p.k, len(train))
	predicted, accuracy, err := classify(features, labels, train, test, k)
	if err != nil {
		return Summary{}, err
	}

	names := rowNames(ds, p.nameColumn)
	if err := writeSubmission(outPath, names, labels, test, predicted); err != nil {
		return Summary{}, err
	}

	s := Summary{
		Rows:     ds.Len(),
		Train:    len(train),
		Test:     len(test),
		Features: features.names,
		K:        k,
		Accuracy: accuracy,
		Output:   outPath,
	}
	p.logger.Info(ctx, "submission written",
		logger.String("output", outPath),
		logger.Int("train", s.Train),
		logger.Int("test", s.Test),
		logger.Float64("accuracy", accuracy))
	return s, nil
}

// classify fits k-NN on the training rows and predicts the test rows, in order.
// Training and held-out rows live in separate instance sets that share one
// attribute layout, so held-out rows are never seen by Fit.
func classify(m matrix, labels []string, train, test []int, k int) ([]string, float64, error) {
	attrs := make([]base.Attribute, len(m.names))
	for j, name := range m.names {
		attrs[j] = base.NewFloatAttribute(name)
	}
	class := base.NewCategoricalAttribute()
	class.SetName("position")

	trainInst, err := newInstances(m, labels, train, attrs, class)
	if err != nil {
		return nil, 0, fmt.Errorf("training instances: %w", err)
	}
	testInst, err := newInstances(m, labels, test, attrs, class)
	if err != nil {
		return nil, 0, fmt.Errorf("held-out instances: %w", err)
	}

	cls := knn.NewKnnClassifier("euclidean", "linear", k)
	if err := cls.Fit(trainInst); err != nil {
		return nil, 0, fmt.Errorf("fit: %w", err)
	}
	predictions, err := cls.Predict(testInst)
	if err != nil {
		return nil, 0, fmt.Errorf("predict: %w", err)
	}
	if _, n := predictions.Size(); n != len(test) {
		return nil, 0, fmt.Errorf("predict: %d predictions for %d rows", n, len(test))
	}

	out := make([]string, len(test))
	for i := range out {
		out[i] = base.GetClass(predictions, i)
	}
	cm, err := evaluation.GetConfusionMatrix(testInst, predictions)
	if err != nil {
		return nil, 0, fmt.Errorf("confusion matrix: %w", err)
	}
	return out, evaluation.GetAccuracy(cm), nil
}

// newInstances packs the given source rows, in order, into a dense instance
// set with the float feature attributes followed by the class attribute.
func newInstances(m matrix, labels []string, rows []int, attrs []base.Attribute, class *base.CategoricalAttribute) (*base.DenseInstances, error) {
	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, len(attrs))
	for j, a := range attrs {
		specs[j] = inst.AddAttribute(a)
	}
	classSpec := inst.AddAttribute(class)
	if err := inst.AddClassAttribute(class); err != nil {
		return nil, fmt.Errorf("class attribute: %w", err)
	}
	if err := inst.Extend(len(rows)); err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	for r, src := range rows {
		for j, spec := range specs {
			inst.Set(spec, r, base.PackFloatToBytes(m.rows[src][j]))
		}
		inst.Set(classSpec, r, class.GetSysValFromString(labels[src]))
	}
	return inst, nil
}

func rowNames(ds *dataset.Dataset, column string) []string {
	if idx := ds.ColumnIndex(column); idx >= 0 {
		return ds.ColumnAt(idx)
	}
	out := make([]string, ds.Len())
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func writeSubmission(path string, names, labels []string, test []int, predicted []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(outputHeader)
	for i, r := range test {
		_ = w.Write([]string{names[r], labels[r], predicted[i]})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
